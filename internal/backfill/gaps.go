// Package backfill fills historical gaps in per-entity price series: it
// resolves the entities worth backfilling, detects missing calendar days
// within a lookback horizon, fetches upstream history, reconciles it into
// canonical observations, and bulk-inserts them.
package backfill

import "time"

// dateUTC truncates t to its UTC calendar day.
func dateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MissingDates returns the calendar days in [today-maxLookbackDays, today]
// that are absent from stored, oldest first. Gaps beyond the horizon are
// invisible by design.
func MissingDates(stored []time.Time, today time.Time, maxLookbackDays int) []time.Time {
	have := make(map[time.Time]struct{}, len(stored))
	for _, t := range stored {
		have[dateUTC(t)] = struct{}{}
	}

	base := dateUTC(today)
	var missing []time.Time
	for d := maxLookbackDays; d >= 0; d-- {
		day := base.AddDate(0, 0, -d)
		if _, ok := have[day]; !ok {
			missing = append(missing, day)
		}
	}
	return missing
}
