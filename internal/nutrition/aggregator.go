// Package nutrition turns logged meals into daily totals and adherence
// figures against a plan's targets.
package nutrition

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/meals"
)

// dayLayout is the canonical bucket key format.
const dayLayout = "2006-01-02"

// Totals holds summed macros for one calendar day.
type Totals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"proteinG"`
	CarbsG   float64 `json:"carbsG"`
	FatG     float64 `json:"fatG"`
	Meals    int     `json:"meals"`
}

// Goal is the daily macro target a plan prescribes.
type Goal struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"proteinG"`
	CarbsG   float64 `json:"carbsG"`
	FatG     float64 `json:"fatG"`
}

// Adherence holds per-macro adherence percentages, each in [0, 100].
type Adherence struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// RangeSummary aggregates a date range. DailyAverage is computed over
// days that have at least one entry, not over the span of the range.
type RangeSummary struct {
	DaysLogged   int    `json:"daysLogged"`
	Total        Totals `json:"total"`
	DailyAverage Totals `json:"dailyAverage"`
}

// Aggregator folds meal entries into day buckets.
type Aggregator struct {
	logger zerolog.Logger
}

// NewAggregator creates a new aggregator.
func NewAggregator(logger zerolog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate buckets entries by calendar day and sums their macros.
// The result is deterministic for a given input; aggregating the same
// entries twice yields the same totals.
func (a *Aggregator) Aggregate(entries []*meals.Entry) map[string]Totals {
	byDay := make(map[string]Totals)

	for _, e := range entries {
		day, ok := a.normalizeDay(e.LoggedOn)
		if !ok {
			a.logger.Warn().
				Str("entry_id", e.ID).
				Str("logged_on", e.LoggedOn).
				Msg("skipping meal entry with unusable date")
			continue
		}

		t := byDay[day]
		t.Calories += a.sanitize(e.ID, "calories", e.Calories)
		t.ProteinG += a.sanitize(e.ID, "protein", e.ProteinG)
		t.CarbsG += a.sanitize(e.ID, "carbs", e.CarbsG)
		t.FatG += a.sanitize(e.ID, "fat", e.FatG)
		t.Meals++
		byDay[day] = t
	}

	return byDay
}

// normalizeDay reduces a logged date to its YYYY-MM-DD day key. Date
// strings carrying a time component are truncated at the 'T' so that
// "2024-05-01T08:30:00" and "2024-05-01" land in the same bucket.
func (a *Aggregator) normalizeDay(loggedOn string) (string, bool) {
	s := strings.TrimSpace(loggedOn)
	if s == "" {
		return "", false
	}

	if idx := strings.IndexByte(s, 'T'); idx >= 0 {
		s = s[:idx]
	}

	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", false
	}

	return s, true
}

// sanitize coerces NaN and infinite macro values to zero so a single
// corrupt entry cannot poison a whole day bucket.
func (a *Aggregator) sanitize(entryID, field string, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		a.logger.Warn().
			Str("entry_id", entryID).
			Str("field", field).
			Msg("coercing non-finite macro value to zero")
		return 0
	}
	return v
}

// Summarize reduces day buckets to range totals and per-day averages.
func (a *Aggregator) Summarize(byDay map[string]Totals) RangeSummary {
	summary := RangeSummary{DaysLogged: len(byDay)}
	if len(byDay) == 0 {
		return summary
	}

	for _, t := range byDay {
		summary.Total.Calories += t.Calories
		summary.Total.ProteinG += t.ProteinG
		summary.Total.CarbsG += t.CarbsG
		summary.Total.FatG += t.FatG
		summary.Total.Meals += t.Meals
	}

	days := float64(summary.DaysLogged)
	summary.DailyAverage = Totals{
		Calories: summary.Total.Calories / days,
		ProteinG: summary.Total.ProteinG / days,
		CarbsG:   summary.Total.CarbsG / days,
		FatG:     summary.Total.FatG / days,
		Meals:    summary.Total.Meals / summary.DaysLogged,
	}

	return summary
}

// AdherenceFor scores totals against a goal, macro by macro.
func (a *Aggregator) AdherenceFor(t Totals, g Goal) Adherence {
	return Adherence{
		Calories: AdherencePercent(t.Calories, g.Calories),
		Protein:  AdherencePercent(t.ProteinG, g.ProteinG),
		Carbs:    AdherencePercent(t.CarbsG, g.CarbsG),
		Fat:      AdherencePercent(t.FatG, g.FatG),
	}
}

// Days returns the bucket keys in ascending date order.
func Days(byDay map[string]Totals) []string {
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// AdherencePercent reports how much of a target was met, capped at 100.
// A missing or zero target scores zero rather than dividing by zero.
func AdherencePercent(actual, target float64) int {
	if target <= 0 {
		return 0
	}

	pct := math.Round(actual / target * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}
