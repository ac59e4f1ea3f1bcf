package domain

import "time"

// Category identifies the kind of tradeable entity being priced.
type Category string

const (
	CategoryCurrency Category = "currency"
	CategoryCards    Category = "divination_cards"
	CategoryItems    Category = "unique_items"
)

// Categories lists every category in processing order.
var Categories = []Category{CategoryCurrency, CategoryCards, CategoryItems}

// ParseCategory maps a user-facing category string to a Category.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case string(CategoryCurrency):
		return CategoryCurrency, true
	case string(CategoryCards):
		return CategoryCards, true
	case string(CategoryItems):
		return CategoryItems, true
	default:
		return "", false
	}
}

// Source records how an observation was obtained. Live observations carry
// the fetch-instant timestamp; backfilled observations are normalized to
// midnight UTC of their calendar day.
type Source string

const (
	SourceLive       Source = "live"
	SourceBackfilled Source = "backfilled"
)

// CurrencyObservation is one reconciled currency price record. The canonical
// ChaosEquivalent is the chaos-orb exchange rate derived from the pay and
// receive sides.
type CurrencyObservation struct {
	LeagueID        int64
	CurrencyName    string
	Timestamp       time.Time
	ChaosEquivalent float64
	PayValue        *float64
	ReceiveValue    *float64
	TradeCount      *int
	DetailsID       *string
	Source          Source
}

// CardObservation is one divination card price record.
type CardObservation struct {
	LeagueID   int64
	CardName   string
	Timestamp  time.Time
	ChaosValue float64
	StackSize  *int
	TradeCount *int
	DetailsID  *string
	Source     Source
}

// ItemObservation is one unique item price record. The descriptive fields
// are unavailable from history endpoints and nil when backfilled.
type ItemObservation struct {
	LeagueID      int64
	ItemName      string
	Timestamp     time.Time
	ChaosValue    float64
	BaseType      *string
	ItemType      *string
	LevelRequired *int
	Links         *int
	DetailsID     *string
	Source        Source
}
