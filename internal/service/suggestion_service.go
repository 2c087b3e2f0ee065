package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edustack/institute-api/internal/models"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/timeslot"
)

type skillRosterReader interface {
	ListBySkill(ctx context.Context, locationID, skillID string) ([]models.Faculty, error)
}

// SuggestFacultyRequest describes the slot a candidate must be able to take.
type SuggestFacultyRequest struct {
	SkillID    string   `json:"skill_id" validate:"required"`
	StartDate  string   `json:"start_date" validate:"required"`
	EndDate    string   `json:"end_date" validate:"required"`
	StartTime  string   `json:"start_time" validate:"required"`
	EndTime    string   `json:"end_time" validate:"required"`
	DaysOfWeek []string `json:"days_of_week" validate:"required,min=1"`
}

// SuggestFacultyResponse lists the candidates passing every check.
type SuggestFacultyResponse struct {
	Suggestions []models.FacultyRef `json:"suggestions"`
}

// SuggestionService is the read-only form of the conflict logic: it filters a
// skill roster down to faculty who could legally take a slot.
type SuggestionService struct {
	faculty   skillRosterReader
	checker   *ConflictChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSuggestionService instantiates SuggestionService.
func NewSuggestionService(faculty skillRosterReader, checker *ConflictChecker, validate *validator.Validate, logger *zap.Logger) *SuggestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{faculty: faculty, checker: checker, validator: validate, logger: logger}
}

// Suggest returns faculty holding the skill whose availability contains the
// slot and whose existing commitments do not overlap it.
func (s *SuggestionService) Suggest(ctx context.Context, locationID string, req SuggestFacultyRequest) (*SuggestFacultyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion payload")
	}

	days, err := timeslot.ParseDaySet(req.DaysOfWeek)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	dates, err := timeslot.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	rng, err := timeslot.ParseRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	roster, err := s.faculty.ListBySkill(ctx, locationID, req.SkillID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty by skill")
	}

	suggestions := make([]models.FacultyRef, 0, len(roster))
	for _, candidate := range roster {
		if err := s.checker.CheckAvailability(ctx, candidate.ID, days, rng); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrAvailability.Code {
				continue
			}
			return nil, err
		}
		if err := s.checker.CheckPermanentOverlap(ctx, locationID, candidate.ID, "", days, dates, rng); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrScheduleOverlap.Code {
				continue
			}
			return nil, err
		}
		suggestions = append(suggestions, models.FacultyRef{ID: candidate.ID, Name: candidate.FullName})
	}

	return &SuggestFacultyResponse{Suggestions: suggestions}, nil
}
