package backfill

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/league"
	"github.com/exilewatch/exilewatch/internal/platform/poeninja"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes -----------------------------------------------------------------

type fakeLeagueStore struct {
	leagues map[string]domain.League
	nextID  int64
}

func newFakeLeagueStore() *fakeLeagueStore {
	return &fakeLeagueStore{leagues: map[string]domain.League{}, nextID: 1}
}

func (s *fakeLeagueStore) GetByName(_ context.Context, name string) (domain.League, error) {
	l, ok := s.leagues[name]
	if !ok {
		return domain.League{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *fakeLeagueStore) GetByID(_ context.Context, id int64) (domain.League, error) {
	for _, l := range s.leagues {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.League{}, domain.ErrNotFound
}

func (s *fakeLeagueStore) Create(_ context.Context, l domain.League) (int64, error) {
	l.ID = s.nextID
	s.nextID++
	s.leagues[l.Name] = l
	return l.ID, nil
}

func (s *fakeLeagueStore) List(_ context.Context, _ *domain.LeagueStatus) ([]domain.League, error) {
	var out []domain.League
	for _, l := range s.leagues {
		out = append(out, l)
	}
	return out, nil
}

func (s *fakeLeagueStore) UpdateStatus(_ context.Context, name string, status domain.LeagueStatus) error {
	l, ok := s.leagues[name]
	if !ok {
		return domain.ErrNotFound
	}
	l.Status = status
	s.leagues[name] = l
	return nil
}

type fakeCatalogClient struct {
	catalogs map[domain.Category]map[string]int
	errs     map[domain.Category]error
	calls    int
}

func (c *fakeCatalogClient) Catalog(_ context.Context, _ string, category domain.Category) (map[string]int, error) {
	c.calls++
	if err := c.errs[category]; err != nil {
		return nil, err
	}
	return c.catalogs[category], nil
}

type fakeHistoryClient struct {
	currency map[int]poeninja.CurrencyHistory
	items    map[int][]poeninja.HistoryEntry
	fetches  int
}

func (c *fakeHistoryClient) CurrencyHistory(_ context.Context, _ string, id int) (poeninja.CurrencyHistory, error) {
	c.fetches++
	return c.currency[id], nil
}

func (c *fakeHistoryClient) ItemHistory(_ context.Context, _ string, _ domain.Category, id int) ([]poeninja.HistoryEntry, error) {
	c.fetches++
	return c.items[id], nil
}

// fakeCurrencyStore dedupes on (league, name, timestamp) the way the real
// store's conflict-ignoring unique index does.
type fakeCurrencyStore struct {
	rows map[int64]map[string]map[time.Time]domain.CurrencyObservation
}

func newFakeCurrencyStore() *fakeCurrencyStore {
	return &fakeCurrencyStore{rows: map[int64]map[string]map[time.Time]domain.CurrencyObservation{}}
}

func (s *fakeCurrencyStore) seed(leagueID int64, name string, ts time.Time) {
	if s.rows[leagueID] == nil {
		s.rows[leagueID] = map[string]map[time.Time]domain.CurrencyObservation{}
	}
	if s.rows[leagueID][name] == nil {
		s.rows[leagueID][name] = map[time.Time]domain.CurrencyObservation{}
	}
	s.rows[leagueID][name][ts] = domain.CurrencyObservation{
		LeagueID: leagueID, CurrencyName: name, Timestamp: ts,
	}
}

func (s *fakeCurrencyStore) DistinctNames(_ context.Context, leagueID int64) ([]string, error) {
	var names []string
	for name := range s.rows[leagueID] {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeCurrencyStore) DistinctDates(_ context.Context, leagueID int64, name string) ([]time.Time, error) {
	var dates []time.Time
	for ts := range s.rows[leagueID][name] {
		dates = append(dates, ts)
	}
	return dates, nil
}

func (s *fakeCurrencyStore) HasData(_ context.Context, leagueID int64) (bool, error) {
	return len(s.rows[leagueID]) > 0, nil
}

func (s *fakeCurrencyStore) InsertBatch(_ context.Context, obs []domain.CurrencyObservation) (int64, error) {
	var inserted int64
	for _, o := range obs {
		if s.rows[o.LeagueID] == nil {
			s.rows[o.LeagueID] = map[string]map[time.Time]domain.CurrencyObservation{}
		}
		if s.rows[o.LeagueID][o.CurrencyName] == nil {
			s.rows[o.LeagueID][o.CurrencyName] = map[time.Time]domain.CurrencyObservation{}
		}
		if _, exists := s.rows[o.LeagueID][o.CurrencyName][o.Timestamp]; exists {
			continue
		}
		s.rows[o.LeagueID][o.CurrencyName][o.Timestamp] = o
		inserted++
	}
	return inserted, nil
}

// fakeCardStore mirrors fakeCurrencyStore for the card table.
type fakeCardStore struct {
	rows map[int64]map[string]map[time.Time]domain.CardObservation
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{rows: map[int64]map[string]map[time.Time]domain.CardObservation{}}
}

func (s *fakeCardStore) seed(leagueID int64, name string, ts time.Time) {
	if s.rows[leagueID] == nil {
		s.rows[leagueID] = map[string]map[time.Time]domain.CardObservation{}
	}
	if s.rows[leagueID][name] == nil {
		s.rows[leagueID][name] = map[time.Time]domain.CardObservation{}
	}
	s.rows[leagueID][name][ts] = domain.CardObservation{
		LeagueID: leagueID, CardName: name, Timestamp: ts,
	}
}

func (s *fakeCardStore) DistinctNames(_ context.Context, leagueID int64) ([]string, error) {
	var names []string
	for name := range s.rows[leagueID] {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeCardStore) DistinctDates(_ context.Context, leagueID int64, name string) ([]time.Time, error) {
	var dates []time.Time
	for ts := range s.rows[leagueID][name] {
		dates = append(dates, ts)
	}
	return dates, nil
}

func (s *fakeCardStore) HasData(_ context.Context, leagueID int64) (bool, error) {
	return len(s.rows[leagueID]) > 0, nil
}

func (s *fakeCardStore) InsertBatch(_ context.Context, obs []domain.CardObservation) (int64, error) {
	var inserted int64
	for _, o := range obs {
		if s.rows[o.LeagueID] == nil {
			s.rows[o.LeagueID] = map[string]map[time.Time]domain.CardObservation{}
		}
		if s.rows[o.LeagueID][o.CardName] == nil {
			s.rows[o.LeagueID][o.CardName] = map[time.Time]domain.CardObservation{}
		}
		if _, exists := s.rows[o.LeagueID][o.CardName][o.Timestamp]; exists {
			continue
		}
		s.rows[o.LeagueID][o.CardName][o.Timestamp] = o
		inserted++
	}
	return inserted, nil
}

type emptyCardStore struct{}

func (emptyCardStore) DistinctNames(context.Context, int64) ([]string, error) { return nil, nil }
func (emptyCardStore) DistinctDates(context.Context, int64, string) ([]time.Time, error) {
	return nil, nil
}
func (emptyCardStore) HasData(context.Context, int64) (bool, error) { return false, nil }
func (emptyCardStore) InsertBatch(context.Context, []domain.CardObservation) (int64, error) {
	return 0, nil
}

type emptyItemStore struct{}

func (emptyItemStore) DistinctNames(context.Context, int64) ([]string, error) { return nil, nil }
func (emptyItemStore) DistinctDates(context.Context, int64, string) ([]time.Time, error) {
	return nil, nil
}
func (emptyItemStore) HasData(context.Context, int64) (bool, error) { return false, nil }
func (emptyItemStore) InsertBatch(context.Context, []domain.ItemObservation) (int64, error) {
	return 0, nil
}

// --- resolver --------------------------------------------------------------

func TestResolverIntersectsCatalogAndStore(t *testing.T) {
	catalogs := &fakeCatalogClient{catalogs: map[domain.Category]map[string]int{
		domain.CategoryCurrency: {
			"Chaos Orb":   poeninja.ChaosOrbID,
			"Exalted Orb": 2,
			"Mirror Shard": 9,
		},
	}}
	store := newFakeCurrencyStore()
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store.seed(1, "Exalted Orb", today)
	store.seed(1, "Chaos Orb", today)
	store.seed(1, "Ancient Orb", today) // gone from the catalog

	r := NewResolver(catalogs, nil, 0, testLogger())
	resolved, err := r.Resolve(context.Background(), domain.League{ID: 1, Name: "Keepers"}, domain.CategoryCurrency, store)
	require.NoError(t, err)

	// Only the exact-name intersection survives, minus the chaos orb.
	assert.Equal(t, map[string]int{"Exalted Orb": 2}, resolved)
}

// --- orchestrator ----------------------------------------------------------

func newTestBackfiller(t *testing.T, catalogs *fakeCatalogClient, history *fakeHistoryClient, currency *fakeCurrencyStore, today time.Time) *Backfiller {
	t.Helper()
	leagues := league.NewRegistry(newFakeLeagueStore(), testLogger())
	resolver := NewResolver(catalogs, nil, 0, testLogger())
	b := NewBackfiller(resolver, history, leagues, currency, emptyCardStore{}, emptyItemStore{}, testLogger())
	b.now = func() time.Time { return today }
	return b
}

func TestBackfillFillsExactlyTheMissingDays(t *testing.T) {
	today := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	catalogs := &fakeCatalogClient{catalogs: map[domain.Category]map[string]int{
		domain.CategoryCurrency: {"Exalted Orb": 2},
	}}

	// Upstream has a full 30-day pay series.
	var pay []poeninja.HistoryEntry
	for d := 0; d <= 30; d++ {
		pay = append(pay, poeninja.HistoryEntry{DaysAgo: d, Value: 100, Count: 10})
	}
	history := &fakeHistoryClient{currency: map[int]poeninja.CurrencyHistory{
		2: {Pay: pay},
	}}

	// Store covers days 0-10 and 15-30; days 11-14 are the gap.
	currency := newFakeCurrencyStore()
	base := dateUTC(today)
	for d := 0; d <= 30; d++ {
		if d >= 11 && d <= 14 {
			continue
		}
		currency.seed(1, "Exalted Orb", base.AddDate(0, 0, -d))
	}

	b := newTestBackfiller(t, catalogs, history, currency, today)
	res, err := b.Run(context.Background(), "Keepers", []domain.Category{domain.CategoryCurrency}, 30)
	require.NoError(t, err)

	require.Len(t, res.Categories, 1)
	cr := res.Categories[0]
	require.NoError(t, cr.Err)
	assert.Equal(t, 1, cr.EntitiesProcessed)
	assert.Equal(t, int64(4), cr.RecordsWritten)

	for d := 11; d <= 14; d++ {
		ts := base.AddDate(0, 0, -d)
		o, ok := currency.rows[res.League.ID]["Exalted Orb"][ts]
		require.True(t, ok, "day -%d not filled", d)
		assert.Equal(t, res.League.ID, o.LeagueID)
		assert.Equal(t, "Exalted Orb", o.CurrencyName)
		assert.Equal(t, domain.SourceBackfilled, o.Source)
		assert.InDelta(t, 0.01, o.ChaosEquivalent, 1e-9)
	}
}

func TestBackfillIsIdempotent(t *testing.T) {
	today := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	catalogs := &fakeCatalogClient{catalogs: map[domain.Category]map[string]int{
		domain.CategoryCurrency: {"Exalted Orb": 2},
	}}
	var pay []poeninja.HistoryEntry
	for d := 0; d <= 30; d++ {
		pay = append(pay, poeninja.HistoryEntry{DaysAgo: d, Value: 100, Count: 10})
	}
	history := &fakeHistoryClient{currency: map[int]poeninja.CurrencyHistory{
		2: {Pay: pay},
	}}
	currency := newFakeCurrencyStore()
	currency.seed(1, "Exalted Orb", dateUTC(today))

	b := newTestBackfiller(t, catalogs, history, currency, today)

	first, err := b.Run(context.Background(), "Keepers", []domain.Category{domain.CategoryCurrency}, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), first.Categories[0].RecordsWritten)
	assert.Equal(t, 1, first.Categories[0].EntitiesProcessed)

	second, err := b.Run(context.Background(), "Keepers", []domain.Category{domain.CategoryCurrency}, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Categories[0].RecordsWritten)
	// An entity counts as processed only when it got new rows.
	assert.Equal(t, 0, second.Categories[0].EntitiesProcessed)
}

func TestBackfillKeepsZeroValueDays(t *testing.T) {
	today := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	catalogs := &fakeCatalogClient{catalogs: map[domain.Category]map[string]int{
		domain.CategoryCards: {"Rain of Chaos": 11},
	}}
	// The only point for the missing day quotes a zero value.
	history := &fakeHistoryClient{items: map[int][]poeninja.HistoryEntry{
		11: {{DaysAgo: 1, Value: 0, Count: 3}},
	}}
	cards := newFakeCardStore()
	cards.seed(1, "Rain of Chaos", dateUTC(today))

	leagues := league.NewRegistry(newFakeLeagueStore(), testLogger())
	resolver := NewResolver(catalogs, nil, 0, testLogger())
	b := NewBackfiller(resolver, history, leagues, newFakeCurrencyStore(), cards, emptyItemStore{}, testLogger())
	b.now = func() time.Time { return today }

	res, err := b.Run(context.Background(), "Keepers", []domain.Category{domain.CategoryCards}, 1)
	require.NoError(t, err)

	// The zero value is stored verbatim and closes the gap.
	require.Equal(t, int64(1), res.Categories[0].RecordsWritten)
	ts := dateUTC(today).AddDate(0, 0, -1)
	o, ok := cards.rows[res.League.ID]["Rain of Chaos"][ts]
	require.True(t, ok)
	assert.Equal(t, 0.0, o.ChaosValue)
	require.NotNil(t, o.TradeCount)
	assert.Equal(t, 3, *o.TradeCount)

	// A second run finds no gap left and does not refetch.
	fetched := history.fetches
	again, err := b.Run(context.Background(), "Keepers", []domain.Category{domain.CategoryCards}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Categories[0].RecordsWritten)
	assert.Equal(t, fetched, history.fetches)
}

func TestBackfillSkipsEntityWithoutGaps(t *testing.T) {
	today := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	catalogs := &fakeCatalogClient{catalogs: map[domain.Category]map[string]int{
		domain.CategoryCurrency: {"Exalted Orb": 2},
	}}
	history := &fakeHistoryClient{}
	currency := newFakeCurrencyStore()
	base := dateUTC(today)
	for d := 0; d <= 5; d++ {
		currency.seed(1, "Exalted Orb", base.AddDate(0, 0, -d))
	}

	b := newTestBackfiller(t, catalogs, history, currency, today)
	res, err := b.Run(context.Background(), "Keepers", []domain.Category{domain.CategoryCurrency}, 5)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Categories[0].RecordsWritten)
	assert.Zero(t, history.fetches, "no history fetch expected for a gapless entity")
}

func TestBackfillContinuesPastFailedCategory(t *testing.T) {
	today := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	catalogs := &fakeCatalogClient{
		catalogs: map[domain.Category]map[string]int{
			domain.CategoryCurrency: {"Exalted Orb": 2},
		},
		errs: map[domain.Category]error{
			domain.CategoryCards: errors.New("upstream down"),
		},
	}
	history := &fakeHistoryClient{currency: map[int]poeninja.CurrencyHistory{
		2: {Pay: []poeninja.HistoryEntry{{DaysAgo: 1, Value: 100, Count: 1}}},
	}}
	currency := newFakeCurrencyStore()
	currency.seed(1, "Exalted Orb", dateUTC(today))

	b := newTestBackfiller(t, catalogs, history, currency, today)
	res, err := b.Run(context.Background(), "Keepers",
		[]domain.Category{domain.CategoryCards, domain.CategoryCurrency}, 1)
	require.NoError(t, err)

	require.Len(t, res.Categories, 2)
	assert.Error(t, res.Categories[0].Err)
	require.NoError(t, res.Categories[1].Err)
	assert.Equal(t, int64(1), res.Categories[1].RecordsWritten)
}
