package pipeline

import (
	"archive/zip"
	"bytes"
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

type fakeSnapshotClient struct {
	currencyLines []poeninja.CurrencyLine
	itemLines     map[domain.Category][]poeninja.ItemLine
	dump          []byte
	dumpErr       error
	dumpFetches   int
	overviewErr   error
}

func (c *fakeSnapshotClient) CurrencyOverview(_ context.Context, _ string) ([]poeninja.CurrencyLine, []poeninja.CurrencyDetail, error) {
	if c.overviewErr != nil {
		return nil, nil, c.overviewErr
	}
	return c.currencyLines, nil, nil
}

func (c *fakeSnapshotClient) ItemOverview(_ context.Context, _ string, category domain.Category) ([]poeninja.ItemLine, error) {
	if c.overviewErr != nil {
		return nil, c.overviewErr
	}
	return c.itemLines[category], nil
}

func (c *fakeSnapshotClient) FetchDump(_ context.Context, _ string) ([]byte, error) {
	c.dumpFetches++
	return c.dump, c.dumpErr
}

type fakeLister struct {
	infos []domain.LeagueInfo
}

func (l *fakeLister) RecentLeagues(_ context.Context, n int) ([]domain.LeagueInfo, error) {
	if n < len(l.infos) {
		return l.infos[:n], nil
	}
	return l.infos, nil
}

type memCurrencyStore struct {
	obs []domain.CurrencyObservation
}

func (s *memCurrencyStore) DistinctNames(context.Context, int64) ([]string, error) { return nil, nil }
func (s *memCurrencyStore) DistinctDates(context.Context, int64, string) ([]time.Time, error) {
	return nil, nil
}
func (s *memCurrencyStore) HasData(_ context.Context, leagueID int64) (bool, error) {
	for _, o := range s.obs {
		if o.LeagueID == leagueID {
			return true, nil
		}
	}
	return false, nil
}
func (s *memCurrencyStore) InsertBatch(_ context.Context, obs []domain.CurrencyObservation) (int64, error) {
	s.obs = append(s.obs, obs...)
	return int64(len(obs)), nil
}

type memCardStore struct {
	obs []domain.CardObservation
}

func (s *memCardStore) DistinctNames(context.Context, int64) ([]string, error) { return nil, nil }
func (s *memCardStore) DistinctDates(context.Context, int64, string) ([]time.Time, error) {
	return nil, nil
}
func (s *memCardStore) HasData(_ context.Context, leagueID int64) (bool, error) {
	for _, o := range s.obs {
		if o.LeagueID == leagueID {
			return true, nil
		}
	}
	return false, nil
}
func (s *memCardStore) InsertBatch(_ context.Context, obs []domain.CardObservation) (int64, error) {
	s.obs = append(s.obs, obs...)
	return int64(len(obs)), nil
}

type memItemStore struct {
	obs []domain.ItemObservation
}

func (s *memItemStore) DistinctNames(context.Context, int64) ([]string, error) { return nil, nil }
func (s *memItemStore) DistinctDates(context.Context, int64, string) ([]time.Time, error) {
	return nil, nil
}
func (s *memItemStore) HasData(_ context.Context, leagueID int64) (bool, error) {
	for _, o := range s.obs {
		if o.LeagueID == leagueID {
			return true, nil
		}
	}
	return false, nil
}
func (s *memItemStore) InsertBatch(_ context.Context, obs []domain.ItemObservation) (int64, error) {
	s.obs = append(s.obs, obs...)
	return int64(len(obs)), nil
}

type memArchiver struct {
	keys []string
}

func (a *memArchiver) ArchiveDump(_ context.Context, league string, fetchedAt time.Time, _ []byte) (string, error) {
	key := "dumps/" + league + "/" + fetchedAt.UTC().Format("2006-01-02") + ".zip"
	a.keys = append(a.keys, key)
	return key, nil
}

// buildDump assembles a minimal semicolon-CSV dump archive.
func buildDump(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	cw, err := zw.Create("currency.csv")
	require.NoError(t, err)
	_, err = cw.Write([]byte("currencyTypeName;chaosEquivalent;detailsId\nDivine Orb;180.5;divine-orb\n"))
	require.NoError(t, err)

	iw, err := zw.Create("items.csv")
	require.NoError(t, err)
	_, err = iw.Write([]byte("name;itemType;chaosValue;baseType;levelRequired;links;stackSize;detailsId\n" +
		"The Doctor;DivinationCard;300;;;;8;the-doctor\n" +
		"Starforge;Sword;45;Infernal Sword;67;;;starforge\n"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// --- tests -----------------------------------------------------------------

func TestRunCollectsLiveSnapshots(t *testing.T) {
	pay := &poeninja.SideEntry{Value: 0.005, Count: 20}
	ninja := &fakeSnapshotClient{
		currencyLines: []poeninja.CurrencyLine{
			{CurrencyTypeName: "Divine Orb", Pay: pay, ChaosEquivalent: 200},
		},
		itemLines: map[domain.Category][]poeninja.ItemLine{
			domain.CategoryCards: {{ID: 1, Name: "The Doctor", ChaosValue: 300}},
			domain.CategoryItems: {{ID: 2, Name: "Starforge", ChaosValue: 45}},
		},
	}
	currency, cards, items := &memCurrencyStore{}, &memCardStore{}, &memItemStore{}
	reg := league.NewRegistry(newFakeLeagueStore(), testLogger())

	c := NewCollector(Config{Leagues: []string{"Settlers"}}, ninja, &fakeLister{}, reg, currency, cards, items, nil, testLogger())
	c.now = func() time.Time { return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC) }

	require.NoError(t, c.Run(context.Background()))

	require.Len(t, currency.obs, 1)
	assert.Equal(t, "Divine Orb", currency.obs[0].CurrencyName)
	assert.Equal(t, domain.SourceLive, currency.obs[0].Source)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), currency.obs[0].Timestamp)
	require.Len(t, cards.obs, 1)
	require.Len(t, items.obs, 1)
}

func TestRunLoadsHistoricalDumpOnce(t *testing.T) {
	ninja := &fakeSnapshotClient{dump: buildDump(t)}
	currency, cards, items := &memCurrencyStore{}, &memCardStore{}, &memItemStore{}
	store := newFakeLeagueStore()
	store.leagues["Keepers"] = domain.League{ID: 1, Name: "Keepers", Status: domain.LeagueStatusExpired}
	reg := league.NewRegistry(store, testLogger())
	archiver := &memArchiver{}

	c := NewCollector(Config{Leagues: []string{"Keepers"}, CollectHistorical: true}, ninja, &fakeLister{}, reg, currency, cards, items, archiver, testLogger())
	c.now = func() time.Time { return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC) }

	require.NoError(t, c.Run(context.Background()))

	require.Len(t, currency.obs, 1)
	assert.Equal(t, "Divine Orb", currency.obs[0].CurrencyName)
	assert.Equal(t, domain.SourceBackfilled, currency.obs[0].Source)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), currency.obs[0].Timestamp)

	require.Len(t, cards.obs, 1)
	assert.Equal(t, "The Doctor", cards.obs[0].CardName)
	require.Len(t, items.obs, 2) // the card row also appears as an item row
	assert.Equal(t, []string{"dumps/Keepers/2025-03-10.zip"}, archiver.keys)

	// A second cycle sees data everywhere and never refetches the dump.
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, ninja.dumpFetches)
}

func TestRunDiscoversAndSyncsLeagues(t *testing.T) {
	ninja := &fakeSnapshotClient{}
	currency, cards, items := &memCurrencyStore{}, &memCardStore{}, &memItemStore{}
	store := newFakeLeagueStore()
	store.leagues["Settlers"] = domain.League{ID: 1, Name: "Settlers", Status: domain.LeagueStatusActive}
	reg := league.NewRegistry(store, testLogger())

	lister := &fakeLister{infos: []domain.LeagueInfo{
		{Name: "Mercenaries", Status: domain.LeagueStatusActive},
		{Name: "Settlers", Status: domain.LeagueStatusExpired},
	}}

	c := NewCollector(Config{RecentLeagues: 2}, ninja, lister, reg, currency, cards, items, nil, testLogger())
	require.NoError(t, c.Run(context.Background()))

	settlers, err := store.GetByName(context.Background(), "Settlers")
	require.NoError(t, err)
	assert.Equal(t, domain.LeagueStatusExpired, settlers.Status)

	_, err = store.GetByName(context.Background(), "Mercenaries")
	require.NoError(t, err)
}

func TestRunContinuesPastCategoryFailure(t *testing.T) {
	ninja := &fakeSnapshotClient{overviewErr: errors.New("upstream down")}
	currency, cards, items := &memCurrencyStore{}, &memCardStore{}, &memItemStore{}
	reg := league.NewRegistry(newFakeLeagueStore(), testLogger())

	c := NewCollector(Config{Leagues: []string{"Settlers"}}, ninja, &fakeLister{}, reg, currency, cards, items, nil, testLogger())

	// All categories fail upstream; the cycle itself still succeeds.
	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, currency.obs)
}
