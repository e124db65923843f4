package models

// MealEntry represents a logged meal.
type MealEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MealType  MealType  `json:"mealType"`
	Calories  float64   `json:"calories"`
	ProteinG  float64   `json:"proteinG"`
	CarbsG    float64   `json:"carbsG"`
	FatG      float64   `json:"fatG"`
	LoggedOn  string    `json:"loggedOn"`
	CreatedAt Timestamp `json:"createdAt"`
}

// MealCreateRequest is the request body for logging a meal.
type MealCreateRequest struct {
	Name     string   `json:"name" validate:"required,min=1,max=120"`
	MealType MealType `json:"mealType" validate:"required"`
	Calories float64  `json:"calories" validate:"gte=0"`
	ProteinG float64  `json:"proteinG" validate:"gte=0"`
	CarbsG   float64  `json:"carbsG" validate:"gte=0"`
	FatG     float64  `json:"fatG" validate:"gte=0"`
	// LoggedOn is the client-local day the meal belongs to, as
	// YYYY-MM-DD or an ISO timestamp. Defaults to today (UTC) when
	// empty.
	LoggedOn string `json:"loggedOn,omitempty"`
}

// MealListResponse is a date-ranged list of meal entries.
type MealListResponse struct {
	Items []MealEntry `json:"items"`
	From  string      `json:"from"`
	To    string      `json:"to"`
}
