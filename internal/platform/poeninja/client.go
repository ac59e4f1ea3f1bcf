// Package poeninja is the REST client for the poe.ninja economy API. All
// requests go through the resilient transport; callers receive either
// decoded payloads or an error they can treat as "no data for this entity".
package poeninja

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/transport"
)

// ChaosOrbID is the upstream id of the base reference currency. It is
// definitionally worth one of itself and is never backfilled.
const ChaosOrbID = 1

// Client talks to the poe.ninja economy endpoints.
type Client struct {
	baseURL string
	http    *transport.Client
	logger  *slog.Logger
}

// NewClient creates a Client rooted at baseURL, e.g. "https://poe.ninja".
func NewClient(baseURL string, tc *transport.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    tc,
		logger:  logger.With(slog.String("component", "poeninja")),
	}
}

// apiType maps a category to the upstream type parameter.
func apiType(category domain.Category) string {
	switch category {
	case domain.CategoryCurrency:
		return "Currency"
	case domain.CategoryCards:
		return "DivinationCard"
	default:
		return "UniqueWeapon"
	}
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.http.Get(ctx, c.baseURL+path, params, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("poeninja: decode %s: %w (%v)", path, domain.ErrBadPayload, err)
	}
	return nil
}

// CurrencyOverview fetches the full live currency snapshot for a league,
// including the catalog of currency details.
func (c *Client) CurrencyOverview(ctx context.Context, league string) ([]CurrencyLine, []CurrencyDetail, error) {
	params := url.Values{}
	params.Set("league", league)
	params.Set("type", apiType(domain.CategoryCurrency))

	var resp currencyOverviewResponse
	if err := c.getJSON(ctx, "/poe1/api/economy/stash/current/currency/overview", params, &resp); err != nil {
		return nil, nil, fmt.Errorf("poeninja: currency overview %s: %w", league, err)
	}
	return resp.Lines, resp.CurrencyDetails, nil
}

// ItemOverview fetches the live snapshot lines for cards or unique items.
func (c *Client) ItemOverview(ctx context.Context, league string, category domain.Category) ([]ItemLine, error) {
	params := url.Values{}
	params.Set("league", league)
	params.Set("type", apiType(category))

	var resp itemOverviewResponse
	if err := c.getJSON(ctx, "/poe1/api/economy/stash/current/item/overview", params, &resp); err != nil {
		return nil, fmt.Errorf("poeninja: item overview %s/%s: %w", league, category, err)
	}
	return resp.Lines, nil
}

// Catalog returns the display-name -> upstream-id map for a category.
// Entries without an id are skipped.
func (c *Client) Catalog(ctx context.Context, league string, category domain.Category) (map[string]int, error) {
	catalog := make(map[string]int)

	if category == domain.CategoryCurrency {
		_, details, err := c.CurrencyOverview(ctx, league)
		if err != nil {
			return nil, err
		}
		for _, d := range details {
			if d.ID == 0 || d.Name == "" {
				continue
			}
			catalog[d.Name] = d.ID
		}
		return catalog, nil
	}

	lines, err := c.ItemOverview(ctx, league, category)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.ID == 0 || l.Name == "" {
			continue
		}
		catalog[l.Name] = l.ID
	}
	return catalog, nil
}

// CurrencyHistory fetches the two-sided series for one currency.
func (c *Client) CurrencyHistory(ctx context.Context, league string, upstreamID int) (CurrencyHistory, error) {
	params := url.Values{}
	params.Set("league", league)
	params.Set("type", apiType(domain.CategoryCurrency))
	params.Set("id", strconv.Itoa(upstreamID))

	var hist CurrencyHistory
	if err := c.getJSON(ctx, "/poe1/api/economy/stash/current/currency/history", params, &hist); err != nil {
		return CurrencyHistory{}, fmt.Errorf("poeninja: currency history id=%d: %w", upstreamID, err)
	}
	return hist, nil
}

// ItemHistory fetches the single-sided series for one card or unique item.
func (c *Client) ItemHistory(ctx context.Context, league string, category domain.Category, upstreamID int) ([]HistoryEntry, error) {
	params := url.Values{}
	params.Set("league", league)
	params.Set("type", apiType(category))
	params.Set("id", strconv.Itoa(upstreamID))

	var entries []HistoryEntry
	if err := c.getJSON(ctx, "/poe1/api/economy/stash/current/item/history", params, &entries); err != nil {
		return nil, fmt.Errorf("poeninja: item history %s id=%d: %w", category, upstreamID, err)
	}
	return entries, nil
}
