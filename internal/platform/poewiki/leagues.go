// Package poewiki scrapes the league listing table from poewiki.net to
// discover league names, release dates, and which league is currently
// active.
package poewiki

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/transport"
)

// dateLayouts are tried in order when parsing the release-date column.
var dateLayouts = []string{
	"2006-01-02 3:04:05 PM",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Client scrapes the wiki league table.
type Client struct {
	pageURL string
	http    *transport.Client
	logger  *slog.Logger
}

// NewClient creates a Client for the given league page URL, e.g.
// "https://www.poewiki.net/wiki/League".
func NewClient(pageURL string, tc *transport.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		pageURL: pageURL,
		http:    tc,
		logger:  logger.With(slog.String("component", "poewiki")),
	}
}

// parseDate parses a release date with multi-format fallback. Unparseable
// dates sort last.
func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// cleanName reduces a raw league cell to the bare league name: the first
// whitespace-separated token with any parenthetical stripped.
func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// RecentLeagues returns the n most recently released leagues, newest first.
// The newest league is reported Active, the rest Expired.
func (c *Client) RecentLeagues(ctx context.Context, n int) ([]domain.LeagueInfo, error) {
	body, err := c.http.Get(ctx, c.pageURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("poewiki: fetch league page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("poewiki: parse league page: %w (%v)", domain.ErrBadPayload, err)
	}

	table := doc.Find("table.cargoTable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("poewiki: league table: %w", domain.ErrBadPayload)
	}

	var all []domain.LeagueInfo
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header row
		}
		name := cleanName(cells.Eq(0).Text())
		if name == "" {
			return
		}
		all = append(all, domain.LeagueInfo{
			Name:      name,
			StartDate: parseDate(strings.TrimSpace(cells.Eq(1).Text())),
		})
	})
	if len(all) == 0 {
		return nil, fmt.Errorf("poewiki: league table rows: %w", domain.ErrBadPayload)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartDate.After(all[j].StartDate)
	})

	seen := make(map[string]bool, n)
	recent := make([]domain.LeagueInfo, 0, n)
	for _, l := range all {
		if seen[l.Name] {
			continue
		}
		seen[l.Name] = true

		l.Status = domain.LeagueStatusExpired
		if len(recent) == 0 {
			l.Status = domain.LeagueStatusActive
		}
		recent = append(recent, l)
		if len(recent) >= n {
			break
		}
	}

	c.logger.Info("fetched recent leagues", slog.Int("count", len(recent)))
	return recent, nil
}

// LatestLeague returns the name of the most recently released league.
func (c *Client) LatestLeague(ctx context.Context) (string, error) {
	recent, err := c.RecentLeagues(ctx, 1)
	if err != nil {
		return "", err
	}
	return recent[0].Name, nil
}
