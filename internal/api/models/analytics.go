package models

// DailyNutrition is one day's logged totals, with adherence against
// the active plan's targets when one exists.
type DailyNutrition struct {
	Date      string          `json:"date"`
	Calories  float64         `json:"calories"`
	ProteinG  float64         `json:"proteinG"`
	CarbsG    float64         `json:"carbsG"`
	FatG      float64         `json:"fatG"`
	Meals     int             `json:"meals"`
	Adherence *MacroAdherence `json:"adherence,omitempty"`
}

// MacroAdherence holds per-macro adherence percentages in [0, 100].
type MacroAdherence struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// NutritionTotals holds summed macros over a range of days.
type NutritionTotals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"proteinG"`
	CarbsG   float64 `json:"carbsG"`
	FatG     float64 `json:"fatG"`
	Meals    int     `json:"meals"`
}

// NutritionAnalyticsResponse summarises logged nutrition over a date
// range. DailyAverage is computed over days with at least one entry.
// Goal and AverageAdherence are omitted when the user has no active
// plan to score against.
type NutritionAnalyticsResponse struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	DaysLogged       int              `json:"daysLogged"`
	Days             []DailyNutrition `json:"days"`
	Total            NutritionTotals  `json:"total"`
	DailyAverage     NutritionTotals  `json:"dailyAverage"`
	Goal             *NutritionGoal   `json:"goal,omitempty"`
	AverageAdherence *MacroAdherence  `json:"averageAdherence,omitempty"`
}

// BudgetTiers holds shopping items bucketed by cost tier.
type BudgetTiers struct {
	Value    []ShoppingItem `json:"value"`
	Standard []ShoppingItem `json:"standard"`
	Premium  []ShoppingItem `json:"premium"`
}

// BudgetReportResponse scores the active plan's shopping list against
// the weekly budget. BudgetPercentage is capped at 100 for display;
// Status reflects the uncapped spend ratio.
type BudgetReportResponse struct {
	PlanID           string       `json:"planId"`
	Budget           float64      `json:"budget"`
	TotalCost        float64      `json:"totalCost"`
	BudgetPercentage int          `json:"budgetPercentage"`
	RemainingBudget  float64      `json:"remainingBudget"`
	Status           BudgetStatus `json:"status"`
	ReportedStatus   string       `json:"reportedStatus,omitempty"`
	Tiers            BudgetTiers  `json:"tiers"`
}
