package poeninja

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
)

const (
	dumpCurrencyMember = "currency.csv"
	dumpItemsMember    = "items.csv"
)

// dumpNameCandidates returns the dump names to try for a league, in order.
// The permanent Standard/Hardcore leagues have historically been published
// under a suffixed name as well.
func dumpNameCandidates(league string) []string {
	switch league {
	case "Standard", "Hardcore":
		return []string{league, league + " League"}
	default:
		return []string{league}
	}
}

// FetchDump downloads the bulk daily dump archive for a league. It tries
// each candidate dump name until one returns an archive.
func (c *Client) FetchDump(ctx context.Context, league string) ([]byte, error) {
	var lastErr error
	for _, name := range dumpNameCandidates(league) {
		params := url.Values{}
		params.Set("name", name)

		raw, err := c.http.Get(ctx, c.baseURL+"/poe1/api/data/dumps/dump", params, nil)
		if err == nil {
			c.logger.Info("fetched dump archive",
				slog.String("league", league),
				slog.String("dump_name", name),
				slog.Int("bytes", len(raw)),
			)
			return raw, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("poeninja: fetch dump for %s: %w", league, lastErr)
}

// openDumpMember locates a CSV member inside the dump archive and returns
// a semicolon-aware reader over it.
func openDumpMember(raw []byte, member string) (*csv.Reader, io.Closer, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("poeninja: open dump archive: %w (%v)", domain.ErrBadPayload, err)
	}
	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("poeninja: open dump member %s: %w", member, err)
		}
		cr := csv.NewReader(rc)
		cr.Comma = ';'
		cr.FieldsPerRecord = -1
		return cr, rc, nil
	}
	return nil, nil, fmt.Errorf("poeninja: dump member %s: %w", member, domain.ErrBadPayload)
}

// columnIndex maps header names to field positions.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}

func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func floatField(record []string, idx map[string]int, name string) float64 {
	v, err := strconv.ParseFloat(field(record, idx, name), 64)
	if err != nil {
		return 0
	}
	return v
}

func intPtrField(record []string, idx map[string]int, name string) *int {
	v, err := strconv.Atoi(field(record, idx, name))
	if err != nil {
		return nil
	}
	return &v
}

// ParseDumpCurrency extracts currency observations from a dump archive. The
// dump carries no per-side quotes, only the canonical chaos equivalent.
func ParseDumpCurrency(raw []byte, leagueID int64, ts time.Time) ([]domain.CurrencyObservation, error) {
	cr, closer, err := openDumpMember(raw, dumpCurrencyMember)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("poeninja: read %s header: %w (%v)", dumpCurrencyMember, domain.ErrBadPayload, err)
	}
	idx := columnIndex(header)

	var obs []domain.CurrencyObservation
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("poeninja: read %s: %w (%v)", dumpCurrencyMember, domain.ErrBadPayload, err)
		}
		name := field(record, idx, "currencyTypeName")
		if name == "" {
			continue
		}
		zero := 0
		obs = append(obs, domain.CurrencyObservation{
			LeagueID:        leagueID,
			CurrencyName:    name,
			Timestamp:       ts,
			ChaosEquivalent: floatField(record, idx, "chaosEquivalent"),
			TradeCount:      &zero,
			DetailsID:       ptrIfNonEmpty(field(record, idx, "detailsId")),
			Source:          domain.SourceBackfilled,
		})
	}
	return obs, nil
}

// ParseDumpCards extracts divination card observations from the items CSV,
// which mixes cards with every other item type.
func ParseDumpCards(raw []byte, leagueID int64, ts time.Time) ([]domain.CardObservation, error) {
	cr, closer, err := openDumpMember(raw, dumpItemsMember)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("poeninja: read %s header: %w (%v)", dumpItemsMember, domain.ErrBadPayload, err)
	}
	idx := columnIndex(header)

	var obs []domain.CardObservation
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("poeninja: read %s: %w (%v)", dumpItemsMember, domain.ErrBadPayload, err)
		}
		if field(record, idx, "itemType") != "DivinationCard" {
			continue
		}
		name := field(record, idx, "name")
		if name == "" {
			continue
		}
		zero := 0
		obs = append(obs, domain.CardObservation{
			LeagueID:   leagueID,
			CardName:   name,
			Timestamp:  ts,
			ChaosValue: floatField(record, idx, "chaosValue"),
			StackSize:  intPtrField(record, idx, "stackSize"),
			TradeCount: &zero,
			DetailsID:  ptrIfNonEmpty(field(record, idx, "detailsId")),
			Source:     domain.SourceBackfilled,
		})
	}
	return obs, nil
}

// ParseDumpItems extracts unique item observations from the items CSV.
func ParseDumpItems(raw []byte, leagueID int64, ts time.Time) ([]domain.ItemObservation, error) {
	cr, closer, err := openDumpMember(raw, dumpItemsMember)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("poeninja: read %s header: %w (%v)", dumpItemsMember, domain.ErrBadPayload, err)
	}
	idx := columnIndex(header)

	var obs []domain.ItemObservation
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("poeninja: read %s: %w (%v)", dumpItemsMember, domain.ErrBadPayload, err)
		}
		name := field(record, idx, "name")
		if name == "" {
			continue
		}
		obs = append(obs, domain.ItemObservation{
			LeagueID:      leagueID,
			ItemName:      name,
			Timestamp:     ts,
			ChaosValue:    floatField(record, idx, "chaosValue"),
			BaseType:      ptrIfNonEmpty(field(record, idx, "baseType")),
			ItemType:      ptrIfNonEmpty(field(record, idx, "itemType")),
			LevelRequired: intPtrField(record, idx, "levelRequired"),
			Links:         intPtrField(record, idx, "links"),
			DetailsID:     ptrIfNonEmpty(field(record, idx, "detailsId")),
			Source:        domain.SourceBackfilled,
		})
	}
	return obs, nil
}
