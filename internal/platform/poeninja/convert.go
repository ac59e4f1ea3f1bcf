package poeninja

import (
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
)

func ptrIfNonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToObservation converts a live currency snapshot line to a domain record
// stamped with the fetch instant. The stored pay value is inverted so both
// sides express chaos per unit of the entity.
func (l CurrencyLine) ToObservation(leagueID int64, fetchedAt time.Time) domain.CurrencyObservation {
	obs := domain.CurrencyObservation{
		LeagueID:        leagueID,
		CurrencyName:    l.CurrencyTypeName,
		Timestamp:       fetchedAt,
		ChaosEquivalent: l.ChaosEquivalent,
		DetailsID:       ptrIfNonEmpty(l.DetailsID),
		Source:          domain.SourceLive,
	}
	if l.Pay != nil {
		if l.Pay.Value != 0 {
			inv := 1 / l.Pay.Value
			obs.PayValue = &inv
		}
		count := l.Pay.Count
		obs.TradeCount = &count
	}
	if l.Receive != nil {
		v := l.Receive.Value
		obs.ReceiveValue = &v
	}
	return obs
}

// ToCardObservation converts a live card snapshot line.
func (l ItemLine) ToCardObservation(leagueID int64, fetchedAt time.Time) domain.CardObservation {
	obs := domain.CardObservation{
		LeagueID:   leagueID,
		CardName:   l.Name,
		Timestamp:  fetchedAt,
		ChaosValue: l.ChaosValue,
		StackSize:  l.StackSize,
		DetailsID:  ptrIfNonEmpty(l.DetailsID),
		Source:     domain.SourceLive,
	}
	if l.TradeInfo != nil {
		count := l.TradeInfo.Count
		obs.TradeCount = &count
	} else {
		zero := 0
		obs.TradeCount = &zero
	}
	return obs
}

// ToItemObservation converts a live unique item snapshot line.
func (l ItemLine) ToItemObservation(leagueID int64, fetchedAt time.Time) domain.ItemObservation {
	return domain.ItemObservation{
		LeagueID:      leagueID,
		ItemName:      l.Name,
		Timestamp:     fetchedAt,
		ChaosValue:    l.ChaosValue,
		BaseType:      l.BaseType,
		ItemType:      l.ItemType,
		LevelRequired: l.LevelRequired,
		Links:         l.Links,
		DetailsID:     ptrIfNonEmpty(l.DetailsID),
		Source:        domain.SourceLive,
	}
}
