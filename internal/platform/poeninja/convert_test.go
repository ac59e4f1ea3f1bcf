package poeninja

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exilewatch/exilewatch/internal/domain"
)

func TestCurrencyLineToObservationInvertsPay(t *testing.T) {
	fetchedAt := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	line := CurrencyLine{
		CurrencyTypeName: "Divine Orb",
		Pay:              &SideEntry{Value: 0.005, Count: 41},
		Receive:          &SideEntry{Value: 180.2, Count: 55},
		ChaosEquivalent:  180.5,
		DetailsID:        "divine-orb",
	}

	obs := line.ToObservation(7, fetchedAt)

	assert.Equal(t, int64(7), obs.LeagueID)
	assert.Equal(t, "Divine Orb", obs.CurrencyName)
	assert.Equal(t, fetchedAt, obs.Timestamp)
	assert.Equal(t, 180.5, obs.ChaosEquivalent)
	require.NotNil(t, obs.PayValue)
	assert.InDelta(t, 200.0, *obs.PayValue, 1e-9, "pay is stored as chaos per unit")
	require.NotNil(t, obs.ReceiveValue)
	assert.Equal(t, 180.2, *obs.ReceiveValue)
	require.NotNil(t, obs.TradeCount)
	assert.Equal(t, 41, *obs.TradeCount)
	require.NotNil(t, obs.DetailsID)
	assert.Equal(t, "divine-orb", *obs.DetailsID)
	assert.Equal(t, domain.SourceLive, obs.Source)
}

func TestCurrencyLineToObservationHandlesMissingSides(t *testing.T) {
	obs := CurrencyLine{CurrencyTypeName: "Mirror Shard", ChaosEquivalent: 1200}.ToObservation(1, time.Now())

	assert.Nil(t, obs.PayValue)
	assert.Nil(t, obs.ReceiveValue)
	assert.Nil(t, obs.TradeCount)
	assert.Nil(t, obs.DetailsID)
}

func TestCurrencyLineToObservationZeroPayValue(t *testing.T) {
	obs := CurrencyLine{
		CurrencyTypeName: "Scroll Fragment",
		Pay:              &SideEntry{Value: 0, Count: 3},
	}.ToObservation(1, time.Now())

	assert.Nil(t, obs.PayValue, "a zero pay quote must not be inverted")
	require.NotNil(t, obs.TradeCount)
	assert.Equal(t, 3, *obs.TradeCount)
}

func TestItemLineToCardObservation(t *testing.T) {
	fetchedAt := time.Now().UTC()
	stack := 8
	line := ItemLine{
		Name:       "The Doctor",
		StackSize:  &stack,
		ChaosValue: 950.5,
		DetailsID:  "the-doctor",
		TradeInfo:  &TradeInfo{Count: 12},
	}

	obs := line.ToCardObservation(3, fetchedAt)

	assert.Equal(t, "The Doctor", obs.CardName)
	assert.Equal(t, 950.5, obs.ChaosValue)
	require.NotNil(t, obs.StackSize)
	assert.Equal(t, 8, *obs.StackSize)
	require.NotNil(t, obs.TradeCount)
	assert.Equal(t, 12, *obs.TradeCount)
	assert.Equal(t, domain.SourceLive, obs.Source)
}

func TestItemLineToCardObservationDefaultsTradeCount(t *testing.T) {
	obs := ItemLine{Name: "Rain of Chaos", ChaosValue: 0.5}.ToCardObservation(3, time.Now())
	require.NotNil(t, obs.TradeCount)
	assert.Equal(t, 0, *obs.TradeCount)
}

func TestItemLineToItemObservation(t *testing.T) {
	base := "Infernal Sword"
	itemType := "Weapon"
	level := 67
	links := 6
	line := ItemLine{
		Name:          "Starforge",
		BaseType:      &base,
		ItemType:      &itemType,
		LevelRequired: &level,
		Links:         &links,
		ChaosValue:    420,
	}

	obs := line.ToItemObservation(5, time.Now().UTC())

	assert.Equal(t, "Starforge", obs.ItemName)
	assert.Equal(t, 420.0, obs.ChaosValue)
	require.NotNil(t, obs.BaseType)
	assert.Equal(t, "Infernal Sword", *obs.BaseType)
	require.NotNil(t, obs.Links)
	assert.Equal(t, 6, *obs.Links)
	assert.Equal(t, domain.SourceLive, obs.Source)
}
