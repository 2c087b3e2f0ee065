package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/internal/repository"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/timeslot"
)

type substitutionRepoStub struct {
	subs      map[string]*models.Substitution
	createErr error
	updateErr error
	created   *models.Substitution
}

func (s *substitutionRepoStub) FindByID(ctx context.Context, id string) (*models.Substitution, error) {
	sub, ok := s.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *sub
	return &cp, nil
}

func (s *substitutionRepoStub) Create(ctx context.Context, sub *models.Substitution) error {
	if s.createErr != nil {
		return s.createErr
	}
	sub.ID = "sub-new"
	s.created = sub
	return nil
}

func (s *substitutionRepoStub) Update(ctx context.Context, sub *models.Substitution) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *substitutionRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.subs, id)
	return nil
}

type batchStoreStub struct {
	batches    map[string]*models.Batch
	reassigned map[string]string
}

func (s *batchStoreStub) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	batch, ok := s.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *batch
	return &cp, nil
}

func (s *batchStoreStub) UpdateFaculty(ctx context.Context, batchID, facultyID string) error {
	if s.reassigned == nil {
		s.reassigned = map[string]string{}
	}
	s.reassigned[batchID] = facultyID
	return nil
}

type batchByFacultyStub struct {
	batches []models.Batch
}

func (s *batchByFacultyStub) ListByFaculty(ctx context.Context, locationID, facultyID, excludeBatchID string) ([]models.Batch, error) {
	var out []models.Batch
	for _, b := range s.batches {
		if b.LocationID == locationID && b.FacultyID == facultyID && b.ID != excludeBatchID {
			out = append(out, b)
		}
	}
	return out, nil
}

type substituteDutyStub struct {
	duties        []models.SubstitutionDetail
	lastExcludeID string
}

func (s *substituteDutyStub) ListBySubstitute(ctx context.Context, locationID, facultyID, excludeID string, dates timeslot.DateRange) ([]models.SubstitutionDetail, error) {
	s.lastExcludeID = excludeID
	var out []models.SubstitutionDetail
	for _, d := range s.duties {
		if d.ID == excludeID || d.SubstituteFacultyID != facultyID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type substitutionFixture struct {
	svc          *SubstitutionService
	repo         *substitutionRepoStub
	batches      *batchStoreStub
	roster       *facultyReaderStub
	availability *availabilityRepoStub
	existing     *batchByFacultyStub
	duties       *substituteDutyStub
}

func newSubstitutionFixture(t *testing.T) *substitutionFixture {
	t.Helper()
	span := timeslot.DateRange{
		Start: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	batch := &models.Batch{
		ID: "batch-1", Name: "Morning Maths", FacultyID: "fac-1", LocationID: "loc-1",
		StartDate: span.Start, EndDate: span.End,
		StartTime: "09:00:00", EndTime: "10:00:00", DaysOfWeek: "MONDAY",
	}
	roster := &facultyReaderStub{faculty: map[string]*models.Faculty{
		"fac-1": {ID: "fac-1", FullName: "Anita Rao", LocationID: "loc-1", Active: true},
		"fac-2": {ID: "fac-2", FullName: "Vikram Shah", LocationID: "loc-1", Active: true},
		"fac-3": {ID: "fac-3", FullName: "Priya Nair", LocationID: "loc-2", Active: true},
	}}
	availability := &availabilityRepoStub{slots: []models.AvailabilitySlot{
		availabilityWeek("fac-2", "MONDAY", "08:00:00", "17:00:00"),
	}}
	existing := &batchByFacultyStub{}
	duties := &substituteDutyStub{}
	checker := NewConflictChecker(availability, existing, duties)

	repo := &substitutionRepoStub{subs: map[string]*models.Substitution{}}
	batches := &batchStoreStub{batches: map[string]*models.Batch{"batch-1": batch}}
	svc := NewSubstitutionService(repo, batches, roster, checker, nil, validator.New(), zap.NewNop())

	return &substitutionFixture{svc: svc, repo: repo, batches: batches, roster: roster, availability: availability, existing: existing, duties: duties}
}

func createReq(facultyID string) CreateSubstitutionRequest {
	return CreateSubstitutionRequest{
		BatchID:             "batch-1",
		SubstituteFacultyID: facultyID,
		StartDate:           "2026-09-07",
		EndDate:             "2026-09-14",
	}
}

func TestCreateSubstitution(t *testing.T) {
	fx := newSubstitutionFixture(t)

	sub, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-2"))
	require.NoError(t, err)
	assert.Equal(t, "fac-1", sub.OriginalFacultyID)
	assert.Equal(t, "fac-2", sub.SubstituteFacultyID)
	assert.Equal(t, "loc-1", sub.LocationID)
	assert.NotNil(t, fx.repo.created)
}

func TestCreateSubstitutionRejectsSelf(t *testing.T) {
	fx := newSubstitutionFixture(t)

	_, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSelfSubstitution.Code, appErrors.FromError(err).Code)
}

func TestCreateSubstitutionRejectsForeignFaculty(t *testing.T) {
	fx := newSubstitutionFixture(t)

	_, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-3"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateSubstitutionRejectsAvailabilityViolation(t *testing.T) {
	fx := newSubstitutionFixture(t)
	// Narrow fac-2's Monday window so the 09:00-10:00 batch no longer fits.
	fx.batches.batches["batch-1"].StartTime = "07:00:00"
	fx.batches.batches["batch-1"].EndTime = "08:30:00"

	_, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-2"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAvailability.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "MONDAY")
}

func TestCreateSubstitutionTouchingBoundaryDoesNotConflict(t *testing.T) {
	fx := newSubstitutionFixture(t)
	// fac-2 already teaches Monday 10:00-11:00; the target slot ends at 10:00.
	fx.existing.batches = []models.Batch{{
		ID: "batch-2", Name: "Late Maths", FacultyID: "fac-2", LocationID: "loc-1",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00:00", EndTime: "11:00:00", DaysOfWeek: "MONDAY",
	}}

	_, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-2"))
	require.NoError(t, err)
}

func TestCreateSubstitutionRejectsPermanentOverlap(t *testing.T) {
	fx := newSubstitutionFixture(t)
	fx.existing.batches = []models.Batch{{
		ID: "batch-2", Name: "Late Maths", FacultyID: "fac-2", LocationID: "loc-1",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		StartTime: "09:30:00", EndTime: "10:30:00", DaysOfWeek: "MONDAY",
	}}

	_, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-2"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrScheduleOverlap.Code, appErr.Code)

	var conflict *models.ScheduleConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "batch-2", conflict.Conflict.BatchID)
	assert.Equal(t, "permanent", conflict.Conflict.Kind)
}

func TestCreateSubstitutionMapsExclusionRace(t *testing.T) {
	fx := newSubstitutionFixture(t)
	fx.repo.createErr = fmt.Errorf("create substitution: %w", repository.ErrSubstitutionExcluded)

	_, err := fx.svc.Create(context.Background(), "loc-1", createReq("fac-2"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSubstitutionHeld.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrSubstitutionHeld.Status, appErr.Status)
}

func TestUpdateSubstitutionUnchangedFacultySkipsConflictScan(t *testing.T) {
	fx := newSubstitutionFixture(t)
	fx.repo.subs["sub-1"] = &models.Substitution{
		ID: "sub-1", BatchID: "batch-1", OriginalFacultyID: "fac-1", SubstituteFacultyID: "fac-2",
		LocationID: "loc-1",
		StartDate:  time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}

	same := "fac-2"
	note := "covering leave"
	sub, err := fx.svc.Update(context.Background(), "loc-1", "sub-1", UpdateSubstitutionRequest{
		SubstituteFacultyID: &same,
		Notes:               &note,
	})
	require.NoError(t, err)
	assert.Equal(t, "fac-2", sub.SubstituteFacultyID)
	require.NotNil(t, sub.Notes)
	assert.Equal(t, "covering leave", *sub.Notes)
	// No faculty change means the overlap scan never ran.
	assert.Empty(t, fx.duties.lastExcludeID)
}

func TestUpdateSubstitutionExcludesOwnRecordFromScan(t *testing.T) {
	fx := newSubstitutionFixture(t)
	fx.roster.faculty["fac-4"] = &models.Faculty{ID: "fac-4", FullName: "Dev Mehta", LocationID: "loc-1", Active: true}
	fx.availability.slots = append(fx.availability.slots, availabilityWeek("fac-4", "MONDAY", "08:00:00", "17:00:00"))

	fx.repo.subs["sub-1"] = &models.Substitution{
		ID: "sub-1", BatchID: "batch-1", OriginalFacultyID: "fac-1", SubstituteFacultyID: "fac-2",
		LocationID: "loc-1",
		StartDate:  time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}

	next := "fac-4"
	_, err := fx.svc.Update(context.Background(), "loc-1", "sub-1", UpdateSubstitutionRequest{
		SubstituteFacultyID: &next,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", fx.duties.lastExcludeID)
}

func TestUpdateSubstitutionRejectsInvertedDates(t *testing.T) {
	fx := newSubstitutionFixture(t)
	fx.repo.subs["sub-1"] = &models.Substitution{
		ID: "sub-1", BatchID: "batch-1", SubstituteFacultyID: "fac-2", LocationID: "loc-1",
		StartDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}

	end := "2026-09-01"
	_, err := fx.svc.Update(context.Background(), "loc-1", "sub-1", UpdateSubstitutionRequest{EndDate: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteSubstitutionScopedToBranch(t *testing.T) {
	fx := newSubstitutionFixture(t)
	fx.repo.subs["sub-1"] = &models.Substitution{ID: "sub-1", LocationID: "loc-2"}

	err := fx.svc.Delete(context.Background(), "loc-1", "sub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Contains(t, fx.repo.subs, "sub-1")
}

func TestAssignFaculty(t *testing.T) {
	fx := newSubstitutionFixture(t)

	batch, err := fx.svc.Assign(context.Background(), "loc-1", AssignFacultyRequest{
		BatchID: "batch-1", FacultyID: "fac-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "fac-2", batch.FacultyID)
	assert.Equal(t, "fac-2", fx.batches.reassigned["batch-1"])
}

func TestAssignFacultyRejectsCurrentAssignee(t *testing.T) {
	fx := newSubstitutionFixture(t)

	_, err := fx.svc.Assign(context.Background(), "loc-1", AssignFacultyRequest{
		BatchID: "batch-1", FacultyID: "fac-1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "already assigned")
	assert.Empty(t, fx.batches.reassigned)
}
