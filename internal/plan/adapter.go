package plan

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/macroplan/macroplan/internal/coach"
)

// The upstream has shipped several payload vintages. Adapt probes them
// in a fixed order per section rather than optional-chaining at every
// call site:
//
//	meal schedule:    mealPlan.weeklySchedule → mealPlan.weeklyMeals →
//	                  mealPlan.weeklyMealPlan → mealPlan as a bare
//	                  day-keyed object → top-level weeklyMeals /
//	                  weeklyMealPlan
//	workout schedule: workoutPlan.weeklySchedule → workoutPlan.weeklyWorkouts →
//	                  workoutPlan.weeklyWorkoutPlan → workoutPlan as a
//	                  bare day-keyed object → top-level weeklyWorkouts /
//	                  weeklyWorkoutPlan
//	nutrition goal:   nutritionGoal object → top-level calorieTarget /
//	                  proteinTarget / carbsTarget / fatTarget
//	shopping list:    shoppingList object with categories and/or items →
//	                  shoppingList as a bare item array
var (
	mealScheduleKeys    = []string{"weeklySchedule", "weeklyMeals", "weeklyMealPlan"}
	workoutScheduleKeys = []string{"weeklySchedule", "weeklyWorkouts", "weeklyWorkoutPlan"}
)

// Adapt normalises a raw generation payload into the canonical plan.
// It is a pure function: missing or malformed sections produce empty
// structures, never an error, so a partially-formed payload still
// yields a usable plan.
func Adapt(input *coach.Input, raw map[string]any) *FitnessPlan {
	p := &FitnessPlan{
		ID:        "plan_" + uuid.New().String()[:22],
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if input != nil {
		p.UserID = input.UserID
		p.Preferences = *input
	}

	p.Name = str(raw, "planName", "name")
	p.NutritionGoal = adaptNutritionGoal(raw)
	p.MealPlan = MealPlan{WeeklySchedule: adaptSchedule(raw, "mealPlan", mealScheduleKeys, "weeklyMeals", "weeklyMealPlan", adaptMeal)}
	p.WorkoutPlan = WorkoutPlan{WeeklySchedule: adaptSchedule(raw, "workoutPlan", workoutScheduleKeys, "weeklyWorkouts", "weeklyWorkoutPlan", adaptWorkout)}
	p.ShoppingList = adaptShoppingList(raw)

	return p
}

// adaptNutritionGoal prefers a canonical nutritionGoal object and
// falls back to the flat target fields older payloads used.
func adaptNutritionGoal(raw map[string]any) NutritionGoal {
	if nested, ok := asMap(raw["nutritionGoal"]); ok {
		return NutritionGoal{
			CaloriesTarget: num(nested, "caloriesTarget", "calorieTarget", "calories"),
			ProteinTarget:  num(nested, "proteinTarget", "protein"),
			CarbsTarget:    num(nested, "carbsTarget", "carbs"),
			FatTarget:      num(nested, "fatTarget", "fat"),
		}
	}

	return NutritionGoal{
		CaloriesTarget: num(raw, "calorieTarget", "caloriesTarget"),
		ProteinTarget:  num(raw, "proteinTarget"),
		CarbsTarget:    num(raw, "carbsTarget"),
		FatTarget:      num(raw, "fatTarget"),
	}
}

// adaptSchedule resolves one weekly schedule through the documented
// fallback chain and converts each day's entries with convert.
func adaptSchedule[T any](raw map[string]any, wrapper string, wrapperKeys []string, legacyA, legacyB string, convert func(map[string]any) T) WeekSchedule[T] {
	if section, ok := asMap(raw[wrapper]); ok {
		for _, key := range wrapperKeys {
			if days, ok := asMap(section[key]); ok {
				return adaptWeek(days, convert)
			}
		}
		// Oldest shape: the wrapper object is the day map itself.
		if looksLikeWeek(section) {
			return adaptWeek(section, convert)
		}
	}

	for _, key := range []string{legacyA, legacyB} {
		if days, ok := asMap(raw[key]); ok {
			return adaptWeek(days, convert)
		}
	}

	return EmptyWeek[T]()
}

// adaptWeek converts a day-keyed object into a full week schedule.
// Unknown day names are dropped; day values may be a single object or
// a list of objects.
func adaptWeek[T any](days map[string]any, convert func(map[string]any) T) WeekSchedule[T] {
	week := EmptyWeek[T]()

	for day, value := range days {
		key := strings.ToLower(strings.TrimSpace(day))
		if _, known := week[key]; !known {
			continue
		}

		for _, entry := range asObjects(value) {
			week[key] = append(week[key], convert(entry))
		}
	}

	return week
}

// looksLikeWeek reports whether the object is keyed by weekday names.
func looksLikeWeek(section map[string]any) bool {
	for key := range section {
		lower := strings.ToLower(strings.TrimSpace(key))
		for _, day := range Weekdays {
			if lower == day {
				return true
			}
		}
	}
	return false
}

func adaptMeal(obj map[string]any) Meal {
	return Meal{
		Name:        str(obj, "name", "meal", "title"),
		MealType:    str(obj, "mealType", "type"),
		Calories:    num(obj, "calories"),
		ProteinG:    num(obj, "proteinG", "protein"),
		CarbsG:      num(obj, "carbsG", "carbs"),
		FatG:        num(obj, "fatG", "fat"),
		Recipe:      str(obj, "recipe", "instructions"),
		Ingredients: strList(obj["ingredients"]),
	}
}

func adaptWorkout(obj map[string]any) Workout {
	var exercises []Exercise
	for _, e := range asObjects(obj["exercises"]) {
		exercises = append(exercises, Exercise{
			Name:        str(e, "name", "exercise"),
			Sets:        int(num(e, "sets")),
			Reps:        strOrNum(e, "reps"),
			RestSeconds: int(num(e, "restSeconds", "rest")),
		})
	}

	return Workout{
		Name:            str(obj, "name", "workout", "title"),
		Focus:           str(obj, "focus", "muscleGroup"),
		DurationMinutes: int(num(obj, "durationMinutes", "duration")),
		Exercises:       exercises,
	}
}

// adaptShoppingList accepts both the categorised object shape and the
// bare item-array shape.
func adaptShoppingList(raw map[string]any) ShoppingList {
	list := ShoppingList{
		Categories: []ShoppingCategory{},
		Items:      []ShoppingItem{},
	}

	section := raw["shoppingList"]

	if obj, ok := asMap(section); ok {
		list.ReportedStatus = str(obj, "budgetStatus", "status")

		for _, c := range asObjects(obj["categories"]) {
			category := ShoppingCategory{
				Name:          str(c, "name", "category"),
				EstimatedCost: num(c, "estimatedCost", "cost"),
				Items:         []ShoppingItem{},
			}
			for _, item := range asObjects(c["items"]) {
				category.Items = append(category.Items, adaptShoppingItem(item, category.Name))
			}
			list.Categories = append(list.Categories, category)
		}

		for _, item := range asObjects(obj["items"]) {
			list.Items = append(list.Items, adaptShoppingItem(item, ""))
		}

		return list
	}

	// Bare array: every element is an item.
	for _, item := range asObjects(section) {
		list.Items = append(list.Items, adaptShoppingItem(item, ""))
	}

	return list
}

func adaptShoppingItem(obj map[string]any, category string) ShoppingItem {
	item := ShoppingItem{
		Name:          str(obj, "name", "item"),
		Quantity:      num(obj, "quantity"),
		Unit:          str(obj, "unit"),
		EstimatedCost: num(obj, "estimatedCost", "cost", "price"),
		Category:      str(obj, "category"),
	}
	if item.Category == "" {
		item.Category = category
	}
	return item
}

// Loose-typed accessors. JSON numbers decode as float64, but older
// payloads also carry numbers as strings, so num parses both.

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

// asObjects normalises a value into a slice of objects: a list of
// objects stays a list, a single object becomes a one-element list,
// anything else is empty.
func asObjects(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		objects := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if obj, ok := asMap(e); ok {
				objects = append(objects, obj)
			}
		}
		return objects
	case map[string]any:
		return []map[string]any{t}
	default:
		return nil
	}
}

func num(obj map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func str(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// strOrNum renders a value that may legitimately be either, such as a
// rep scheme ("8-12") or a plain count (10).
func strOrNum(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func strList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
