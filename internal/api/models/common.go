// Package models provides request and response models for the MacroPlan API.
package models

import (
	"strconv"
	"time"
)

// PagedResponseMeta carries the page limit and the cursor for the next
// page, if there is one.
type PagedResponseMeta struct {
	Limit      int     `json:"limit"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// MealType identifies which meal of the day an entry belongs to.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// BudgetTier buckets shopping items by estimated unit cost.
type BudgetTier string

const (
	BudgetTierValue    BudgetTier = "value"
	BudgetTierStandard BudgetTier = "standard"
	BudgetTierPremium  BudgetTier = "premium"
)

// BudgetStatus reports spend against the weekly budget.
type BudgetStatus string

const (
	BudgetStatusUnder BudgetStatus = "under_budget"
	BudgetStatusNear  BudgetStatus = "near_budget"
	BudgetStatusOver  BudgetStatus = "over_budget"
)

// HealthStatus is the tri-state verdict the ops endpoints report.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a time.Time that marshals as an RFC3339 string, the
// format every API payload uses.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).Format(time.RFC3339))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time converts back to the standard library type.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
