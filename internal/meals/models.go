// Package meals provides meal logging services.
package meals

import (
	"errors"
	"strings"
	"time"
)

// Repository errors.
var (
	ErrEntryNotFound = errors.New("meal entry not found")
)

// Meal types.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// Entry represents a logged meal.
//
// LoggedOn is kept exactly as the client sent it. It names a calendar
// day in the user's own timezone, and converting it through time.Time
// on the server could shift it across midnight.
type Entry struct {
	ID        string
	UserID    string
	Name      string
	MealType  string
	Calories  float64
	ProteinG  float64
	CarbsG    float64
	FatG      float64
	LoggedOn  string
	CreatedAt time.Time
}

// Validate checks the entry before persistence.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return errors.New("userId is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(e.LoggedOn) == "" {
		return errors.New("loggedOn is required")
	}
	switch e.MealType {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
	case "":
		return errors.New("mealType is required")
	default:
		return errors.New("unknown mealType")
	}
	if e.Calories < 0 || e.ProteinG < 0 || e.CarbsG < 0 || e.FatG < 0 {
		return errors.New("macros must not be negative")
	}
	return nil
}
