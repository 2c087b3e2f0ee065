package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edustack/institute-api/internal/models"
)

type suggestionFixture struct {
	svc      *SuggestionService
	existing *batchByFacultyStub
}

// newSuggestionFixture sets up one candidate with Monday 09:00-17:00
// availability who already teaches Monday 10:00-11:00.
func newSuggestionFixture(t *testing.T) *suggestionFixture {
	t.Helper()
	roster := &facultyReaderStub{faculty: map[string]*models.Faculty{
		"fac-1": {ID: "fac-1", FullName: "Anita Rao", LocationID: "loc-1", Active: true},
	}}
	availability := &availabilityRepoStub{slots: []models.AvailabilitySlot{
		availabilityWeek("fac-1", "MONDAY", "09:00:00", "17:00:00"),
	}}
	existing := &batchByFacultyStub{batches: []models.Batch{{
		ID: "batch-1", Name: "Morning Maths", FacultyID: "fac-1", LocationID: "loc-1",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00:00", EndTime: "11:00:00", DaysOfWeek: "MONDAY",
	}}}
	checker := NewConflictChecker(availability, existing, &substituteDutyStub{})
	svc := NewSuggestionService(roster, checker, validator.New(), zap.NewNop())
	return &suggestionFixture{svc: svc, existing: existing}
}

func suggestReq(startTime, endTime string) SuggestFacultyRequest {
	return SuggestFacultyRequest{
		SkillID:    "skill-1",
		StartDate:  "2026-09-07",
		EndDate:    "2026-09-07",
		StartTime:  startTime,
		EndTime:    endTime,
		DaysOfWeek: []string{"MONDAY"},
	}
}

func TestSuggestIncludesTouchingBoundary(t *testing.T) {
	fx := newSuggestionFixture(t)

	// 11:00-12:00 starts exactly when the existing batch ends.
	resp, err := fx.svc.Suggest(context.Background(), "loc-1", suggestReq("11:00:00", "12:00:00"))
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "fac-1", resp.Suggestions[0].ID)
	assert.Equal(t, "Anita Rao", resp.Suggestions[0].Name)
}

func TestSuggestExcludesOverlappingCandidate(t *testing.T) {
	fx := newSuggestionFixture(t)

	resp, err := fx.svc.Suggest(context.Background(), "loc-1", suggestReq("10:30:00", "11:30:00"))
	require.NoError(t, err)
	assert.Empty(t, resp.Suggestions)
}

func TestSuggestExcludesCandidateOutsideAvailability(t *testing.T) {
	fx := newSuggestionFixture(t)

	resp, err := fx.svc.Suggest(context.Background(), "loc-1", suggestReq("17:00:00", "18:00:00"))
	require.NoError(t, err)
	assert.Empty(t, resp.Suggestions)
}

func TestSuggestExcludesCandidateBusyOnAnotherWeekday(t *testing.T) {
	fx := newSuggestionFixture(t)

	// Requesting a Tuesday slot: the candidate has no Tuesday availability.
	resp, err := fx.svc.Suggest(context.Background(), "loc-1", SuggestFacultyRequest{
		SkillID:    "skill-1",
		StartDate:  "2026-09-08",
		EndDate:    "2026-09-08",
		StartTime:  "11:00:00",
		EndTime:    "12:00:00",
		DaysOfWeek: []string{"TUESDAY"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Suggestions)
}

func TestSuggestIgnoresBatchOutsideDateRange(t *testing.T) {
	fx := newSuggestionFixture(t)
	// Push the existing batch past the requested dates entirely.
	fx.existing.batches[0].StartDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	fx.existing.batches[0].EndDate = time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

	resp, err := fx.svc.Suggest(context.Background(), "loc-1", suggestReq("10:30:00", "11:30:00"))
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
}

func TestSuggestRequiresDays(t *testing.T) {
	fx := newSuggestionFixture(t)

	_, err := fx.svc.Suggest(context.Background(), "loc-1", SuggestFacultyRequest{
		SkillID:   "skill-1",
		StartDate: "2026-09-07",
		EndDate:   "2026-09-07",
		StartTime: "11:00:00",
		EndTime:   "12:00:00",
	})
	require.Error(t, err)
}
