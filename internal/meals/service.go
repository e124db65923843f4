package meals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/macroplan/macroplan/internal/api/models"
)

// Validation constants.
const (
	MaxNameLength = 120

	// DefaultRangeDays is the span of the range returned when the
	// caller does not ask for one: today and the six days before it.
	DefaultRangeDays = 7

	// MaxRangeDays caps how wide a single range query may be.
	MaxRangeDays = 92
)

const dayLayout = "2006-01-02"

// Range is an inclusive day range, both ends as YYYY-MM-DD keys.
type Range struct {
	From string
	To   string
}

// Service provides meal logging operations.
type Service struct {
	repo Repository
}

// NewService creates a new meal service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Log records a meal for a user.
func (s *Service) Log(ctx context.Context, userID string, input *models.MealCreateRequest) (*models.MealEntry, error) {
	if fieldErrors := s.validateCreateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now().UTC()

	loggedOn := input.LoggedOn
	if loggedOn == "" {
		loggedOn = now.Format(dayLayout)
	}

	entry := &Entry{
		ID:        "meal_" + uuid.New().String()[:22],
		UserID:    userID,
		Name:      input.Name,
		MealType:  string(input.MealType),
		Calories:  input.Calories,
		ProteinG:  input.ProteinG,
		CarbsG:    input.CarbsG,
		FatG:      input.FatG,
		LoggedOn:  loggedOn,
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	result := s.toAPIEntry(entry)
	return &result, nil
}

// List retrieves a user's meals in a day range. An empty range defaults
// to the last seven days.
func (s *Service) List(ctx context.Context, userID, from, to string) (*models.MealListResponse, error) {
	rng, err := ResolveRange(from, to, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListByUserAndRange(ctx, userID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}

	items := make([]models.MealEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, s.toAPIEntry(e))
	}

	return &models.MealListResponse{
		Items: items,
		From:  rng.From,
		To:    rng.To,
	}, nil
}

// Delete removes a meal entry owned by the user.
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	if err := s.repo.Delete(ctx, userID, entryID); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	return nil
}

// ResolveRange validates and defaults a requested day range. A missing
// end defaults to today; a missing start defaults to DefaultRangeDays
// ending at the resolved end.
func ResolveRange(from, to string, now time.Time) (Range, error) {
	var errs []models.FieldError

	if to == "" {
		to = now.Format(dayLayout)
	}
	toDay, err := time.Parse(dayLayout, to)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "to", Message: "must be a YYYY-MM-DD date"})
	}

	if from == "" && err == nil {
		from = toDay.AddDate(0, 0, -(DefaultRangeDays - 1)).Format(dayLayout)
	}
	fromDay, err := time.Parse(dayLayout, from)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "from", Message: "must be a YYYY-MM-DD date"})
	}

	if len(errs) > 0 {
		return Range{}, &ValidationError{Errors: errs}
	}

	if fromDay.After(toDay) {
		errs = append(errs, models.FieldError{Field: "from", Message: "must not be after to"})
	}
	if toDay.Sub(fromDay) > time.Duration(MaxRangeDays)*24*time.Hour {
		errs = append(errs, models.FieldError{Field: "from", Message: "range must be at most 92 days"})
	}

	if len(errs) > 0 {
		return Range{}, &ValidationError{Errors: errs}
	}

	return Range{From: from, To: to}, nil
}

// validateCreateInput validates the meal create input.
func (s *Service) validateCreateInput(input *models.MealCreateRequest) []models.FieldError {
	var errs []models.FieldError

	if input.Name == "" {
		errs = append(errs, models.FieldError{Field: "name", Message: "is required"})
	} else if len(input.Name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 120 characters"})
	}

	switch string(input.MealType) {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
	case "":
		errs = append(errs, models.FieldError{Field: "mealType", Message: "is required"})
	default:
		errs = append(errs, models.FieldError{Field: "mealType", Message: "must be breakfast, lunch, dinner or snack"})
	}

	if input.Calories < 0 {
		errs = append(errs, models.FieldError{Field: "calories", Message: "must not be negative"})
	}
	if input.ProteinG < 0 {
		errs = append(errs, models.FieldError{Field: "proteinG", Message: "must not be negative"})
	}
	if input.CarbsG < 0 {
		errs = append(errs, models.FieldError{Field: "carbsG", Message: "must not be negative"})
	}
	if input.FatG < 0 {
		errs = append(errs, models.FieldError{Field: "fatG", Message: "must not be negative"})
	}

	if input.LoggedOn != "" {
		day := input.LoggedOn
		if len(day) > 10 {
			day = day[:10]
		}
		if _, err := time.Parse(dayLayout, day); err != nil {
			errs = append(errs, models.FieldError{Field: "loggedOn", Message: "must start with a YYYY-MM-DD date"})
		}
	}

	return errs
}

// toAPIEntry converts a domain Entry to an API MealEntry.
func (s *Service) toAPIEntry(e *Entry) models.MealEntry {
	return models.MealEntry{
		ID:        e.ID,
		Name:      e.Name,
		MealType:  models.MealType(e.MealType),
		Calories:  e.Calories,
		ProteinG:  e.ProteinG,
		CarbsG:    e.CarbsG,
		FatG:      e.FatG,
		LoggedOn:  e.LoggedOn,
		CreatedAt: models.Timestamp(e.CreatedAt),
	}
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
