package plan_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplan/macroplan/internal/coach"
	"github.com/macroplan/macroplan/internal/plan"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func testInput() *coach.Input {
	return &coach.Input{
		UserID: "user-1",
		Goal:   "muscle_gain",
		Age:    31,
	}
}

func TestAdapt_CurrentShape(t *testing.T) {
	raw := decode(t, `{
		"planName": "Lean Bulk",
		"nutritionGoal": {
			"caloriesTarget": 2000,
			"proteinTarget": 150,
			"carbsTarget": 220,
			"fatTarget": 60
		},
		"mealPlan": {
			"weeklySchedule": {
				"monday": [
					{"name": "Oats", "mealType": "breakfast", "calories": 420, "protein": 30}
				],
				"Tuesday": {"name": "Omelette", "mealType": "breakfast", "calories": 380}
			}
		},
		"workoutPlan": {
			"weeklySchedule": {
				"monday": [
					{
						"name": "Push Day",
						"focus": "chest",
						"durationMinutes": 60,
						"exercises": [
							{"name": "Bench Press", "sets": 4, "reps": "8-12", "restSeconds": 90},
							{"name": "Dips", "sets": 3, "reps": 10}
						]
					}
				]
			}
		},
		"shoppingList": {
			"categories": [
				{
					"name": "Protein",
					"estimatedCost": 18.5,
					"items": [
						{"name": "Chicken breast", "quantity": 1.5, "unit": "kg", "estimatedCost": 9.2}
					]
				}
			],
			"budgetStatus": "under_budget"
		}
	}`)

	p := plan.Adapt(testInput(), raw)

	assert.True(t, len(p.ID) > len("plan_"))
	assert.Equal(t, "plan_", p.ID[:5])
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "muscle_gain", p.Preferences.Goal)
	assert.True(t, p.Active)
	assert.WithinDuration(t, time.Now(), p.CreatedAt, time.Minute)
	assert.Equal(t, "Lean Bulk", p.Name)

	assert.Equal(t, 2000.0, p.NutritionGoal.CaloriesTarget)
	assert.Equal(t, 150.0, p.NutritionGoal.ProteinTarget)

	// Day keys are lowercased; a single-object day becomes a list
	require.Len(t, p.MealPlan.WeeklySchedule["monday"], 1)
	require.Len(t, p.MealPlan.WeeklySchedule["tuesday"], 1)
	assert.Equal(t, "Oats", p.MealPlan.WeeklySchedule["monday"][0].Name)
	assert.Equal(t, 30.0, p.MealPlan.WeeklySchedule["monday"][0].ProteinG)
	assert.Equal(t, "Omelette", p.MealPlan.WeeklySchedule["tuesday"][0].Name)

	workout := p.WorkoutPlan.WeeklySchedule["monday"][0]
	assert.Equal(t, "Push Day", workout.Name)
	require.Len(t, workout.Exercises, 2)
	assert.Equal(t, "8-12", workout.Exercises[0].Reps)
	assert.Equal(t, "10", workout.Exercises[1].Reps, "numeric reps are rendered as strings")
	assert.Equal(t, 90, workout.Exercises[0].RestSeconds)

	require.Len(t, p.ShoppingList.Categories, 1)
	assert.Equal(t, "Protein", p.ShoppingList.Categories[0].Items[0].Category)
	assert.Equal(t, "under_budget", p.ShoppingList.ReportedStatus)
}

func TestAdapt_LegacyWeeklyMealsKey(t *testing.T) {
	raw := decode(t, `{
		"mealPlan": {
			"weeklyMeals": {
				"wednesday": [{"name": "Stir Fry", "calories": 650}]
			}
		}
	}`)

	p := plan.Adapt(testInput(), raw)

	require.Len(t, p.MealPlan.WeeklySchedule["wednesday"], 1)
	assert.Equal(t, "Stir Fry", p.MealPlan.WeeklySchedule["wednesday"][0].Name)
}

func TestAdapt_LegacyWeeklyMealPlanKey(t *testing.T) {
	raw := decode(t, `{
		"mealPlan": {
			"weeklyMealPlan": {
				"friday": [{"name": "Salmon Bowl"}]
			}
		}
	}`)

	p := plan.Adapt(testInput(), raw)

	require.Len(t, p.MealPlan.WeeklySchedule["friday"], 1)
	assert.Equal(t, "Salmon Bowl", p.MealPlan.WeeklySchedule["friday"][0].Name)
}

func TestAdapt_BareDayKeyedMealPlan(t *testing.T) {
	raw := decode(t, `{
		"mealPlan": {
			"saturday": [{"name": "Pancakes"}],
			"sunday": [{"name": "Roast"}]
		}
	}`)

	p := plan.Adapt(testInput(), raw)

	assert.Equal(t, "Pancakes", p.MealPlan.WeeklySchedule["saturday"][0].Name)
	assert.Equal(t, "Roast", p.MealPlan.WeeklySchedule["sunday"][0].Name)
}

func TestAdapt_TopLevelLegacyKeys(t *testing.T) {
	raw := decode(t, `{
		"weeklyMeals": {
			"monday": [{"name": "Bagel"}]
		},
		"weeklyWorkouts": {
			"monday": [{"name": "Leg Day"}]
		}
	}`)

	p := plan.Adapt(testInput(), raw)

	assert.Equal(t, "Bagel", p.MealPlan.WeeklySchedule["monday"][0].Name)
	assert.Equal(t, "Leg Day", p.WorkoutPlan.WeeklySchedule["monday"][0].Name)
}

func TestAdapt_FlatNutritionTargets(t *testing.T) {
	raw := decode(t, `{
		"calorieTarget": 1850,
		"proteinTarget": 130,
		"carbsTarget": 200,
		"fatTarget": 55
	}`)

	p := plan.Adapt(testInput(), raw)

	assert.Equal(t, 1850.0, p.NutritionGoal.CaloriesTarget)
	assert.Equal(t, 130.0, p.NutritionGoal.ProteinTarget)
	assert.Equal(t, 200.0, p.NutritionGoal.CarbsTarget)
	assert.Equal(t, 55.0, p.NutritionGoal.FatTarget)
}

func TestAdapt_ShoppingListBareArray(t *testing.T) {
	raw := decode(t, `{
		"shoppingList": [
			{"name": "Rice", "quantity": "2", "unit": "kg", "cost": 3.5},
			{"name": "Eggs", "price": 2.8}
		]
	}`)

	p := plan.Adapt(testInput(), raw)

	require.Len(t, p.ShoppingList.Items, 2)
	assert.Equal(t, 2.0, p.ShoppingList.Items[0].Quantity, "string quantities are parsed")
	assert.Equal(t, 3.5, p.ShoppingList.Items[0].EstimatedCost)
	assert.Equal(t, 2.8, p.ShoppingList.Items[1].EstimatedCost)
}

func TestAdapt_EmptyPayload(t *testing.T) {
	p := plan.Adapt(testInput(), map[string]any{})

	// Missing sections become empty structures, never nil
	require.NotNil(t, p.MealPlan.WeeklySchedule)
	require.NotNil(t, p.WorkoutPlan.WeeklySchedule)
	require.NotNil(t, p.ShoppingList.Categories)
	require.NotNil(t, p.ShoppingList.Items)

	for _, day := range plan.Weekdays {
		meals, ok := p.MealPlan.WeeklySchedule[day]
		require.True(t, ok, "day %s must be present", day)
		assert.Empty(t, meals)
	}

	assert.Equal(t, 0.0, p.NutritionGoal.CaloriesTarget)
	assert.True(t, p.Active)
}

func TestAdapt_NilPayload(t *testing.T) {
	p := plan.Adapt(testInput(), nil)

	assert.NotNil(t, p.MealPlan.WeeklySchedule)
	assert.NotNil(t, p.WorkoutPlan.WeeklySchedule)
	assert.Equal(t, "user-1", p.UserID)
}

func TestAdapt_UnknownDayNamesDropped(t *testing.T) {
	raw := decode(t, `{
		"mealPlan": {
			"weeklySchedule": {
				"monday": [{"name": "Toast"}],
				"someday": [{"name": "Nope"}]
			}
		}
	}`)

	p := plan.Adapt(testInput(), raw)

	assert.Len(t, p.MealPlan.WeeklySchedule["monday"], 1)
	assert.Len(t, p.MealPlan.WeeklySchedule, len(plan.Weekdays))
}

func TestShoppingList_TotalCost(t *testing.T) {
	tests := []struct {
		name     string
		list     plan.ShoppingList
		expected float64
	}{
		{
			name: "explicit category costs win",
			list: plan.ShoppingList{
				Categories: []plan.ShoppingCategory{
					{Name: "Protein", EstimatedCost: 20, Items: []plan.ShoppingItem{{EstimatedCost: 5}}},
					{Name: "Veg", EstimatedCost: 10},
				},
			},
			expected: 30,
		},
		{
			name: "category without estimate sums its items",
			list: plan.ShoppingList{
				Categories: []plan.ShoppingCategory{
					{Name: "Protein", Items: []plan.ShoppingItem{{EstimatedCost: 5}, {EstimatedCost: 7.5}}},
				},
			},
			expected: 12.5,
		},
		{
			name: "flat items summed directly",
			list: plan.ShoppingList{
				Items: []plan.ShoppingItem{{EstimatedCost: 3}, {EstimatedCost: 4.25}},
			},
			expected: 7.25,
		},
		{
			name:     "empty list",
			list:     plan.ShoppingList{},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.list.TotalCost())
		})
	}
}

func TestShoppingList_AllItems(t *testing.T) {
	categorised := plan.ShoppingList{
		Categories: []plan.ShoppingCategory{
			{Name: "A", Items: []plan.ShoppingItem{{Name: "x"}, {Name: "y"}}},
			{Name: "B", Items: []plan.ShoppingItem{{Name: "z"}}},
		},
		// Flat items are ignored when categories are present
		Items: []plan.ShoppingItem{{Name: "ignored"}},
	}

	items := categorised.AllItems()
	require.Len(t, items, 3)

	flat := plan.ShoppingList{Items: []plan.ShoppingItem{{Name: "only"}}}
	assert.Len(t, flat.AllItems(), 1)
}
