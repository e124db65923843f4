// Package budget classifies shopping-list items into cost tiers and
// scores the list against a weekly budget.
package budget

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/plan"
)

// Tier is a cost-based classification of a shopping item.
type Tier string

// Item tiers. Boundaries are inclusive on the standard side: an item
// costing exactly 3.00 or 7.00 is standard.
const (
	TierValue    Tier = "value"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Status is the overall budget verdict.
type Status string

// Budget statuses.
const (
	StatusUnder Status = "under_budget"
	StatusNear  Status = "near_budget"
	StatusOver  Status = "over_budget"
)

const (
	valueUpperBound    = 3.0
	standardUpperBound = 7.0

	nearBudgetRatio = 0.75
	overBudgetRatio = 1.0
)

// Tiers holds the classified items keyed by tier.
type Tiers struct {
	Value    []plan.ShoppingItem `json:"value"`
	Standard []plan.ShoppingItem `json:"standard"`
	Premium  []plan.ShoppingItem `json:"premium"`
}

// Summary is the derived budget figure set. BudgetPercentage is capped
// at 100 for display; Status is always computed from the uncapped
// ratio. ReportedStatus carries the upstream's own verdict when the
// payload had one, as a hint only.
type Summary struct {
	TotalCost        float64 `json:"totalCost"`
	Budget           float64 `json:"budget"`
	BudgetPercentage int     `json:"budgetPercentage"`
	Status           Status  `json:"status"`
	ReportedStatus   string  `json:"reportedStatus,omitempty"`
	RemainingBudget  float64 `json:"remainingBudget"`
}

// Classification is the classifier's full output. It is derived on
// demand and never stored.
type Classification struct {
	Tiers   Tiers   `json:"tiers"`
	Summary Summary `json:"summary"`
}

// Classifier scores shopping lists against budgets.
type Classifier struct {
	logger zerolog.Logger
}

// NewClassifier creates a new classifier.
func NewClassifier(logger zerolog.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify tiers every item in the list and summarises the total
// against the budget. Both the categorised and the flat list shapes
// are supported; categorised costs follow plan.ShoppingList.TotalCost.
func (c *Classifier) Classify(list plan.ShoppingList, budget float64) Classification {
	tiers := Tiers{
		Value:    []plan.ShoppingItem{},
		Standard: []plan.ShoppingItem{},
		Premium:  []plan.ShoppingItem{},
	}

	for _, item := range list.AllItems() {
		switch TierFor(item.EstimatedCost) {
		case TierValue:
			tiers.Value = append(tiers.Value, item)
		case TierStandard:
			tiers.Standard = append(tiers.Standard, item)
		case TierPremium:
			tiers.Premium = append(tiers.Premium, item)
		}
	}

	summary := c.summarize(list, budget)

	return Classification{Tiers: tiers, Summary: summary}
}

func (c *Classifier) summarize(list plan.ShoppingList, budget float64) Summary {
	total := list.TotalCost()

	summary := Summary{
		TotalCost:      total,
		Budget:         budget,
		Status:         StatusUnder,
		ReportedStatus: list.ReportedStatus,
	}

	if budget <= 0 {
		return summary
	}

	ratio := total / budget
	summary.BudgetPercentage = cappedPercent(ratio)
	summary.Status = statusForRatio(ratio)
	summary.RemainingBudget = math.Max(0, budget-total)

	if summary.ReportedStatus != "" && summary.ReportedStatus != string(summary.Status) {
		c.logger.Warn().
			Str("computed_status", string(summary.Status)).
			Str("reported_status", summary.ReportedStatus).
			Float64("total_cost", total).
			Float64("budget", budget).
			Msg("upstream budget status disagrees with computed status")
	}

	return summary
}

// TierFor returns the cost tier for a single item cost.
func TierFor(cost float64) Tier {
	switch {
	case cost < valueUpperBound:
		return TierValue
	case cost <= standardUpperBound:
		return TierStandard
	default:
		return TierPremium
	}
}

// statusForRatio maps the uncapped spend ratio to a status. Spending
// the budget exactly is near_budget, not over_budget.
func statusForRatio(ratio float64) Status {
	switch {
	case ratio > overBudgetRatio:
		return StatusOver
	case ratio >= nearBudgetRatio:
		return StatusNear
	default:
		return StatusUnder
	}
}

// cappedPercent renders a ratio as a display percentage capped at 100.
func cappedPercent(ratio float64) int {
	pct := math.Round(ratio * 100)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}
