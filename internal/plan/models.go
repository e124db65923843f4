// Package plan provides the canonical fitness plan model and its
// persistence. Upstream generation payloads are normalised into this
// shape exactly once, at adaptation time; everything downstream works
// with these types only.
package plan

import (
	"errors"
	"time"

	"github.com/macroplan/macroplan/internal/coach"
)

// Repository errors.
var (
	ErrPlanNotFound = errors.New("plan not found")
)

// FitnessPlan is the canonical, fully-normalised plan. It is produced
// once by the adapter and read-only afterwards.
type FitnessPlan struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	Name          string        `json:"name,omitempty"`
	Preferences   coach.Input   `json:"preferences"`
	NutritionGoal NutritionGoal `json:"nutritionGoal"`
	WorkoutPlan   WorkoutPlan   `json:"workoutPlan"`
	MealPlan      MealPlan      `json:"mealPlan"`
	ShoppingList  ShoppingList  `json:"shoppingList"`
	CreatedAt     time.Time     `json:"createdAt"`
	Active        bool          `json:"active"`
}

// NutritionGoal is the plan's daily macro prescription.
type NutritionGoal struct {
	CaloriesTarget float64 `json:"caloriesTarget"`
	ProteinTarget  float64 `json:"proteinTarget"`
	CarbsTarget    float64 `json:"carbsTarget"`
	FatTarget      float64 `json:"fatTarget"`
}

// MealPlan holds the week's meals keyed by lowercase weekday name.
type MealPlan struct {
	WeeklySchedule WeekSchedule[Meal] `json:"weeklySchedule"`
}

// WorkoutPlan holds the week's workouts keyed by lowercase weekday name.
type WorkoutPlan struct {
	WeeklySchedule WeekSchedule[Workout] `json:"weeklySchedule"`
}

// WeekSchedule maps lowercase weekday names to that day's entries.
// Every weekday is present, with an empty slice when nothing is
// scheduled, so consumers can range a full week without nil checks.
type WeekSchedule[T any] map[string][]T

// Weekdays lists schedule keys in week order.
var Weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// EmptyWeek returns a schedule with every weekday present and empty.
func EmptyWeek[T any]() WeekSchedule[T] {
	week := make(WeekSchedule[T], len(Weekdays))
	for _, day := range Weekdays {
		week[day] = []T{}
	}
	return week
}

// Meal is one scheduled meal in a plan.
type Meal struct {
	Name        string   `json:"name"`
	MealType    string   `json:"mealType,omitempty"`
	Calories    float64  `json:"calories,omitempty"`
	ProteinG    float64  `json:"proteinG,omitempty"`
	CarbsG      float64  `json:"carbsG,omitempty"`
	FatG        float64  `json:"fatG,omitempty"`
	Recipe      string   `json:"recipe,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}

// Workout is one scheduled training session in a plan.
type Workout struct {
	Name            string     `json:"name"`
	Focus           string     `json:"focus,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Exercises       []Exercise `json:"exercises,omitempty"`
}

// Exercise is one movement inside a workout.
type Exercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets,omitempty"`
	Reps        string `json:"reps,omitempty"`
	RestSeconds int    `json:"restSeconds,omitempty"`
}

// ShoppingList is the plan's shopping list. Either Categories or Items
// is populated depending on the upstream payload vintage; both may be
// empty but are never nil after adaptation.
type ShoppingList struct {
	Categories     []ShoppingCategory `json:"categories"`
	Items          []ShoppingItem     `json:"items"`
	ReportedStatus string             `json:"reportedStatus,omitempty"`
}

// ShoppingCategory groups shopping items.
type ShoppingCategory struct {
	Name          string         `json:"name"`
	EstimatedCost float64        `json:"estimatedCost,omitempty"`
	Items         []ShoppingItem `json:"items"`
}

// ShoppingItem is one purchasable item. Category names the group the
// item was listed under, when the payload grouped items at all.
type ShoppingItem struct {
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	EstimatedCost float64 `json:"estimatedCost,omitempty"`
	Category      string  `json:"category,omitempty"`
}

// AllItems flattens the list into a single slice, walking categories
// first and falling back to the flat item list.
func (l *ShoppingList) AllItems() []ShoppingItem {
	if len(l.Categories) > 0 {
		var items []ShoppingItem
		for _, c := range l.Categories {
			items = append(items, c.Items...)
		}
		return items
	}
	return l.Items
}

// TotalCost sums the list's cost. A category's explicit estimate wins
// over the sum of its items; without categories the flat items are
// summed directly. Both shapes exist in the wild.
func (l *ShoppingList) TotalCost() float64 {
	if len(l.Categories) > 0 {
		var total float64
		for _, c := range l.Categories {
			if c.EstimatedCost > 0 {
				total += c.EstimatedCost
				continue
			}
			for _, item := range c.Items {
				total += item.EstimatedCost
			}
		}
		return total
	}

	var total float64
	for _, item := range l.Items {
		total += item.EstimatedCost
	}
	return total
}
