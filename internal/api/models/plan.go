package models

// Plan is the canonical fitness plan returned to clients.
type Plan struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	Preferences   PlanPreferences `json:"preferences"`
	NutritionGoal NutritionGoal   `json:"nutritionGoal"`
	WorkoutPlan   WorkoutSchedule `json:"workoutPlan"`
	MealPlan      MealSchedule    `json:"mealPlan"`
	ShoppingList  ShoppingList    `json:"shoppingList"`
	CreatedAt     Timestamp       `json:"createdAt"`
	Active        bool            `json:"active"`
}

// PlanPreferences echoes the questionnaire the plan was generated from.
type PlanPreferences struct {
	Age                  int               `json:"age,omitempty"`
	Sex                  string            `json:"sex,omitempty"`
	HeightCm             float64           `json:"heightCm,omitempty"`
	WeightKg             float64           `json:"weightKg,omitempty"`
	ActivityLevel        string            `json:"activityLevel,omitempty"`
	Goal                 string            `json:"goal"`
	DietaryPreferences   []string          `json:"dietaryPreferences,omitempty"`
	WeeklyBudget         float64           `json:"weeklyBudget,omitempty"`
	WorkoutDaysPerWeek   int               `json:"workoutDaysPerWeek,omitempty"`
	PreferredWorkoutDays []string          `json:"preferredWorkoutDays,omitempty"`
	WorkoutMinutes       int               `json:"workoutMinutes,omitempty"`
	Notifications        NotificationPrefs `json:"notifications"`
}

// NutritionGoal is the plan's daily macro prescription.
type NutritionGoal struct {
	CaloriesTarget float64 `json:"caloriesTarget"`
	ProteinTarget  float64 `json:"proteinTarget"`
	CarbsTarget    float64 `json:"carbsTarget"`
	FatTarget      float64 `json:"fatTarget"`
}

// MealSchedule holds a week of planned meals keyed by lowercase
// weekday name. Every weekday is present.
type MealSchedule struct {
	WeeklySchedule map[string][]PlannedMeal `json:"weeklySchedule"`
}

// WorkoutSchedule holds a week of planned workouts keyed by lowercase
// weekday name. Every weekday is present.
type WorkoutSchedule struct {
	WeeklySchedule map[string][]PlannedWorkout `json:"weeklySchedule"`
}

// PlannedMeal is one scheduled meal in a plan.
type PlannedMeal struct {
	Name        string   `json:"name"`
	MealType    string   `json:"mealType,omitempty"`
	Calories    float64  `json:"calories,omitempty"`
	ProteinG    float64  `json:"proteinG,omitempty"`
	CarbsG      float64  `json:"carbsG,omitempty"`
	FatG        float64  `json:"fatG,omitempty"`
	Recipe      string   `json:"recipe,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}

// PlannedWorkout is one scheduled training session in a plan.
type PlannedWorkout struct {
	Name            string            `json:"name"`
	Focus           string            `json:"focus,omitempty"`
	DurationMinutes int               `json:"durationMinutes,omitempty"`
	Exercises       []PlannedExercise `json:"exercises,omitempty"`
}

// PlannedExercise is one movement inside a workout.
type PlannedExercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets,omitempty"`
	Reps        string `json:"reps,omitempty"`
	RestSeconds int    `json:"restSeconds,omitempty"`
}

// ShoppingList is a plan's shopping list.
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

// ShoppingItem is one purchasable item.
type ShoppingItem struct {
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	EstimatedCost float64 `json:"estimatedCost,omitempty"`
	Category      string  `json:"category,omitempty"`
}

// PlanSummary is the list-view projection of a plan.
type PlanSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name,omitempty"`
	Goal           string    `json:"goal,omitempty"`
	CaloriesTarget float64   `json:"caloriesTarget"`
	CreatedAt      Timestamp `json:"createdAt"`
	Active         bool      `json:"active"`
}

// PagedPlans represents a paginated list of plan summaries.
type PagedPlans struct {
	Items []PlanSummary     `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
