package poewiki

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/transport"
)

const leaguePage = `<html><body>
<table class="cargoTable">
<tr><th>League</th><th>Release date</th></tr>
<tr><td>Keepers of the Flame</td><td>2025-02-14 3:00:00 PM</td></tr>
<tr><td>Settlers of Kalguur</td><td>2024-07-26</td></tr>
<tr><td>Necropolis (hardcore)</td><td>2024-03-29 19:00:00</td></tr>
<tr><td>Affliction</td><td>sometime soon</td></tr>
</table>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, html string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	tc := transport.New(transport.Config{MaxRetries: 0, BreakerThreshold: 100}, testLogger())
	return NewClient(srv.URL, tc, testLogger())
}

func TestRecentLeaguesNewestFirst(t *testing.T) {
	c := newTestClient(t, leaguePage)

	recent, err := c.RecentLeagues(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	assert.Equal(t, "Keepers", recent[0].Name, "the raw cell is reduced to the first token")
	assert.Equal(t, domain.LeagueStatusActive, recent[0].Status)
	assert.Equal(t, time.Date(2025, 2, 14, 15, 0, 0, 0, time.UTC), recent[0].StartDate)

	assert.Equal(t, "Settlers", recent[1].Name)
	assert.Equal(t, domain.LeagueStatusExpired, recent[1].Status)

	assert.Equal(t, "Necropolis", recent[2].Name)
	assert.Equal(t, time.Date(2024, 3, 29, 19, 0, 0, 0, time.UTC), recent[2].StartDate)
}

func TestRecentLeaguesLimitsCount(t *testing.T) {
	c := newTestClient(t, leaguePage)

	recent, err := c.RecentLeagues(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Keepers", recent[0].Name)
}

func TestRecentLeaguesUnparseableDatesSortLast(t *testing.T) {
	c := newTestClient(t, leaguePage)

	recent, err := c.RecentLeagues(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "Affliction", recent[3].Name)
	assert.True(t, recent[3].StartDate.IsZero())
}

func TestRecentLeaguesRejectsPageWithoutTable(t *testing.T) {
	c := newTestClient(t, `<html><body><p>no leagues here</p></body></html>`)

	_, err := c.RecentLeagues(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadPayload)
}

func TestRecentLeaguesDeduplicatesNames(t *testing.T) {
	page := `<table class="cargoTable">
<tr><th>League</th><th>Release date</th></tr>
<tr><td>Keepers (standard)</td><td>2025-02-14</td></tr>
<tr><td>Keepers (hardcore)</td><td>2025-02-14</td></tr>
<tr><td>Settlers</td><td>2024-07-26</td></tr>
</table>`
	c := newTestClient(t, page)

	recent, err := c.RecentLeagues(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Keepers", recent[0].Name)
	assert.Equal(t, "Settlers", recent[1].Name)
}

func TestLatestLeague(t *testing.T) {
	c := newTestClient(t, leaguePage)

	name, err := c.LatestLeague(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Keepers", name)
}
