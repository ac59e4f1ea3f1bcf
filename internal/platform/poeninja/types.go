package poeninja

// SideEntry is one side of a currency quote: value and sampled trade count.
type SideEntry struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// TradeInfo carries the sampled trade count on card snapshot lines.
type TradeInfo struct {
	Count int `json:"count"`
}

// CurrencyDetail is one catalog entry from the currency overview.
type CurrencyDetail struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	TradeID string `json:"tradeId"`
}

// CurrencyLine is one live currency snapshot line.
type CurrencyLine struct {
	CurrencyTypeName string     `json:"currencyTypeName"`
	Pay              *SideEntry `json:"pay"`
	Receive          *SideEntry `json:"receive"`
	ChaosEquivalent  float64    `json:"chaosEquivalent"`
	DetailsID        string     `json:"detailsId"`
}

type currencyOverviewResponse struct {
	Lines           []CurrencyLine   `json:"lines"`
	CurrencyDetails []CurrencyDetail `json:"currencyDetails"`
}

// ItemLine is one live item or card snapshot line; it doubles as the item
// catalog entry (id + name).
type ItemLine struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	BaseType      *string    `json:"baseType"`
	ItemType      *string    `json:"itemType"`
	LevelRequired *int       `json:"levelRequired"`
	StackSize     *int       `json:"stackSize"`
	Links         *int       `json:"links"`
	ChaosValue    float64    `json:"chaosValue"`
	DetailsID     string     `json:"detailsId"`
	TradeInfo     *TradeInfo `json:"tradeInfo"`
}

type itemOverviewResponse struct {
	Lines []ItemLine `json:"lines"`
}

// HistoryEntry is one point of an entity's time series; DaysAgo is the
// offset from the fetch day.
type HistoryEntry struct {
	DaysAgo int     `json:"daysAgo"`
	Value   float64 `json:"value"`
	Count   int     `json:"count"`
}

// CurrencyHistory is the asymmetric two-sided currency series: pay is the
// cost in units of the entity to acquire one chaos orb, receive the amount
// of chaos obtained per unit of the entity.
type CurrencyHistory struct {
	Pay     []HistoryEntry `json:"payCurrencyGraphData"`
	Receive []HistoryEntry `json:"receiveCurrencyGraphData"`
}
