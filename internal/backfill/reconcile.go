package backfill

import (
	"math"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
	"github.com/exilewatch/exilewatch/internal/platform/poeninja"
)

// round6 rounds v to six decimal places, matching the precision of the
// stored value columns.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// indexByDay converts a daysAgo-offset series into a date-keyed map. When a
// day appears more than once the last entry wins. Entries beyond the missing
// set are simply never looked up.
func indexByDay(entries []poeninja.HistoryEntry, today time.Time) map[time.Time]poeninja.HistoryEntry {
	base := dateUTC(today)
	byDay := make(map[time.Time]poeninja.HistoryEntry, len(entries))
	for _, e := range entries {
		byDay[base.AddDate(0, 0, -e.DaysAgo)] = e
	}
	return byDay
}

// reconcileCurrency merges the pay and receive sides of one calendar day into
// a canonical observation. The pay side quotes the cost, in units of the
// entity, of one chaos orb; the receive side quotes chaos received per unit.
// Up to two implied rates are derived (1/pay when pay > 0; receive when
// receive > 0 with a nonzero sample count) and the canonical value is their
// unweighted mean. A day with no usable side yields no record. The trade
// count is the larger of the two sides' sample counts, taken from any side
// that reported, even one whose quote was unusable; it is nil when neither
// side sampled a trade.
func reconcileCurrency(leagueID int64, name string, day time.Time, pay, receive *poeninja.HistoryEntry) (domain.CurrencyObservation, bool) {
	var rates []float64
	var payValue, receiveValue *float64
	payCount, receiveCount := 0, 0

	if pay != nil {
		payCount = pay.Count
	}
	if receive != nil {
		receiveCount = receive.Count
	}

	if pay != nil && pay.Value > 0 {
		rates = append(rates, 1/pay.Value)
		v := round6(pay.Value)
		payValue = &v
	}
	if receive != nil && receive.Value > 0 && receive.Count > 0 {
		rates = append(rates, receive.Value)
		v := round6(receive.Value)
		receiveValue = &v
	}
	if len(rates) == 0 {
		return domain.CurrencyObservation{}, false
	}

	sum := 0.0
	for _, r := range rates {
		sum += r
	}
	var tradeCount *int
	if n := max(payCount, receiveCount); n > 0 {
		tradeCount = &n
	}

	return domain.CurrencyObservation{
		LeagueID:        leagueID,
		CurrencyName:    name,
		Timestamp:       day,
		ChaosEquivalent: round6(sum / float64(len(rates))),
		PayValue:        payValue,
		ReceiveValue:    receiveValue,
		TradeCount:      tradeCount,
		Source:          domain.SourceBackfilled,
	}, true
}

// reconcileCard maps one single-sided history point onto a card observation.
// Descriptive fields are unavailable from history endpoints and stay nil.
func reconcileCard(leagueID int64, name string, day time.Time, e poeninja.HistoryEntry) domain.CardObservation {
	count := e.Count
	return domain.CardObservation{
		LeagueID:   leagueID,
		CardName:   name,
		Timestamp:  day,
		ChaosValue: round6(e.Value),
		TradeCount: &count,
		Source:     domain.SourceBackfilled,
	}
}

// reconcileItem maps one single-sided history point onto an item observation.
func reconcileItem(leagueID int64, name string, day time.Time, e poeninja.HistoryEntry) domain.ItemObservation {
	return domain.ItemObservation{
		LeagueID:   leagueID,
		ItemName:   name,
		Timestamp:  day,
		ChaosValue: round6(e.Value),
		Source:     domain.SourceBackfilled,
	}
}
