package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/internal/repository"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/timeslot"
)

type substitutionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Substitution, error)
	Create(ctx context.Context, sub *models.Substitution) error
	Update(ctx context.Context, sub *models.Substitution) error
	Delete(ctx context.Context, id string) error
}

type batchStore interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	UpdateFaculty(ctx context.Context, batchID, facultyID string) error
}

type facultyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

// CreateSubstitutionRequest describes payload for a temporary reassignment.
type CreateSubstitutionRequest struct {
	BatchID             string  `json:"batch_id" validate:"required"`
	SubstituteFacultyID string  `json:"substitute_faculty_id" validate:"required"`
	StartDate           string  `json:"start_date" validate:"required"`
	EndDate             string  `json:"end_date" validate:"required"`
	Notes               *string `json:"notes"`
}

// UpdateSubstitutionRequest partially updates a substitution. Conflict checks
// re-run only when the substitute faculty changes.
type UpdateSubstitutionRequest struct {
	SubstituteFacultyID *string `json:"substitute_faculty_id"`
	StartDate           *string `json:"start_date"`
	EndDate             *string `json:"end_date"`
	Notes               *string `json:"notes"`
}

// AssignFacultyRequest permanently repoints a batch to a new faculty.
type AssignFacultyRequest struct {
	BatchID   string `json:"batch_id" validate:"required"`
	FacultyID string `json:"faculty_id" validate:"required"`
}

// SubstitutionService coordinates temporary and permanent reassignments.
type SubstitutionService struct {
	substitutions substitutionRepository
	batches       batchStore
	faculty       facultyFinder
	checker       *ConflictChecker
	cache         slotCache
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewSubstitutionService instantiates SubstitutionService.
func NewSubstitutionService(
	substitutions substitutionRepository,
	batches batchStore,
	faculty facultyFinder,
	checker *ConflictChecker,
	cache slotCache,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstitutionService{
		substitutions: substitutions,
		batches:       batches,
		faculty:       faculty,
		checker:       checker,
		cache:         cache,
		validator:     validate,
		logger:        logger,
	}
}

// Create validates and stores a temporary substitution.
func (s *SubstitutionService) Create(ctx context.Context, locationID string, req CreateSubstitutionRequest) (*models.Substitution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution payload")
	}

	batch, err := s.batchAt(ctx, locationID, req.BatchID)
	if err != nil {
		return nil, err
	}

	dates, err := timeslot.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.vetSubstitute(ctx, locationID, batch, req.SubstituteFacultyID, dates, ""); err != nil {
		return nil, err
	}

	sub := &models.Substitution{
		BatchID:             batch.ID,
		OriginalFacultyID:   batch.FacultyID,
		SubstituteFacultyID: req.SubstituteFacultyID,
		LocationID:          locationID,
		StartDate:           dates.Start,
		EndDate:             dates.End,
		Notes:               req.Notes,
	}
	if err := s.substitutions.Create(ctx, sub); err != nil {
		return nil, s.storeError(err, "failed to create substitution")
	}

	s.invalidateSlots(ctx, locationID)
	return sub, nil
}

// Update applies a partial update to a substitution.
func (s *SubstitutionService) Update(ctx context.Context, locationID, id string, req UpdateSubstitutionRequest) (*models.Substitution, error) {
	sub, err := s.substitutionAt(ctx, locationID, id)
	if err != nil {
		return nil, err
	}

	if req.StartDate != nil {
		start, err := timeslot.ParseDate(*req.StartDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		sub.StartDate = start
	}
	if req.EndDate != nil {
		end, err := timeslot.ParseDate(*req.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		sub.EndDate = end
	}
	if sub.EndDate.Before(sub.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	if req.Notes != nil {
		sub.Notes = req.Notes
	}

	facultyChanged := req.SubstituteFacultyID != nil && *req.SubstituteFacultyID != sub.SubstituteFacultyID
	if facultyChanged {
		batch, err := s.batchAt(ctx, locationID, sub.BatchID)
		if err != nil {
			return nil, err
		}
		// The overlap scan excludes this record's own id so an update cannot
		// collide with itself.
		if err := s.vetSubstitute(ctx, locationID, batch, *req.SubstituteFacultyID, sub.Dates(), sub.ID); err != nil {
			return nil, err
		}
		sub.SubstituteFacultyID = *req.SubstituteFacultyID
	}

	if err := s.substitutions.Update(ctx, sub); err != nil {
		return nil, s.storeError(err, "failed to update substitution")
	}

	s.invalidateSlots(ctx, locationID)
	return sub, nil
}

// Delete cancels a substitution.
func (s *SubstitutionService) Delete(ctx context.Context, locationID, id string) error {
	if _, err := s.substitutionAt(ctx, locationID, id); err != nil {
		return err
	}
	if err := s.substitutions.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete substitution")
	}
	s.invalidateSlots(ctx, locationID)
	return nil
}

// Assign permanently repoints a batch to a new faculty after the same
// availability and overlap validation, scoped to the batch's full date range.
func (s *SubstitutionService) Assign(ctx context.Context, locationID string, req AssignFacultyRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	batch, err := s.batchAt(ctx, locationID, req.BatchID)
	if err != nil {
		return nil, err
	}
	if req.FacultyID == batch.FacultyID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "faculty is already assigned to this batch")
	}

	if err := s.vetSubstitute(ctx, locationID, batch, req.FacultyID, batch.Dates(), ""); err != nil {
		return nil, err
	}

	if err := s.batches.UpdateFaculty(ctx, batch.ID, req.FacultyID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign batch")
	}
	batch.FacultyID = req.FacultyID

	s.invalidateSlots(ctx, locationID)
	return batch, nil
}

// vetSubstitute runs the full guard sequence for handing a batch's slot to a
// faculty over a date window: self-assignment, availability containment,
// permanent overlap, temporary overlap.
func (s *SubstitutionService) vetSubstitute(ctx context.Context, locationID string, batch *models.Batch, facultyID string, dates timeslot.DateRange, excludeSubID string) error {
	if facultyID == batch.FacultyID {
		return appErrors.Clone(appErrors.ErrSelfSubstitution, "substitute faculty is already the batch's assignee")
	}

	faculty, err := s.faculty.FindByID(ctx, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "substitute faculty not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute faculty")
	}
	if faculty.LocationID != locationID {
		return appErrors.Clone(appErrors.ErrForbidden, "substitute faculty belongs to another branch")
	}

	days, err := batch.Days()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse batch schedule")
	}
	rng, err := batch.TimeRange()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse batch times")
	}

	if err := s.checker.CheckAvailability(ctx, facultyID, days, rng); err != nil {
		return err
	}
	if err := s.checker.CheckPermanentOverlap(ctx, locationID, facultyID, batch.ID, days, dates, rng); err != nil {
		return err
	}
	return s.checker.CheckTemporaryOverlap(ctx, locationID, facultyID, excludeSubID, days, dates, rng)
}

func (s *SubstitutionService) batchAt(ctx context.Context, locationID, batchID string) (*models.Batch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if batch.LocationID != locationID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "batch belongs to another branch")
	}
	return batch, nil
}

func (s *SubstitutionService) substitutionAt(ctx context.Context, locationID, id string) (*models.Substitution, error) {
	sub, err := s.substitutions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}
	if sub.LocationID != locationID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "substitution belongs to another branch")
	}
	return sub, nil
}

// storeError distinguishes the store's exclusion-constraint collision, which
// catches races the application-level checks cannot.
func (s *SubstitutionService) storeError(err error, fallback string) error {
	if errors.Is(err, repository.ErrSubstitutionExcluded) {
		return appErrors.Wrap(err, appErrors.ErrSubstitutionHeld.Code, appErrors.ErrSubstitutionHeld.Status, appErrors.ErrSubstitutionHeld.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}

func (s *SubstitutionService) invalidateSlots(ctx context.Context, locationID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "freeslots:"+locationID+":*"); err != nil {
		s.logger.Warn("free-slot cache invalidation failed", zap.String("location_id", locationID), zap.Error(err))
	}
}
