package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edustack/institute-api/internal/models"
	appErrors "github.com/edustack/institute-api/pkg/errors"
)

type followUpRepoStub struct {
	counts     models.FollowUpCounts
	tasks      []models.FollowUpTask
	admissions map[string]string
	lastToday  time.Time
	lastFilter models.FollowUpFilter
	logged     *models.FollowUpLog
}

func (s *followUpRepoStub) Counts(ctx context.Context, locationID string, today time.Time) (models.FollowUpCounts, error) {
	s.lastToday = today
	return s.counts, nil
}

func (s *followUpRepoStub) List(ctx context.Context, locationID string, filter models.FollowUpFilter, today time.Time) ([]models.FollowUpTask, error) {
	s.lastFilter = filter
	s.lastToday = today
	return s.tasks, nil
}

func (s *followUpRepoStub) AdmissionLocation(ctx context.Context, admissionID string) (string, error) {
	loc, ok := s.admissions[admissionID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return loc, nil
}

func (s *followUpRepoStub) CreateLog(ctx context.Context, log *models.FollowUpLog) error {
	s.logged = log
	return nil
}

func newFollowUpTestService(repo *followUpRepoStub, config FollowUpServiceConfig) *FollowUpService {
	svc := NewFollowUpService(repo, validator.New(), zap.NewNop(), config)
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC) }
	return svc
}

func TestFollowUpListBundlesCountsAndTasks(t *testing.T) {
	repo := &followUpRepoStub{
		counts: models.FollowUpCounts{Today: 2, Overdue: 5, Upcoming: 9},
		tasks: []models.FollowUpTask{{
			AdmissionID: "adm-1", StudentName: "Ravi Kumar", BatchName: "Morning Maths",
			NextTaskDueDate: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), TotalDueAmount: 1500,
		}},
	}
	svc := newFollowUpTestService(repo, FollowUpServiceConfig{})

	result, err := svc.List(context.Background(), "loc-1", models.FollowUpFilter{DateFilter: models.FollowUpToday})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.Today)
	assert.Equal(t, 5, result.Counts.Overdue)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, models.FollowUpToday, repo.lastFilter.DateFilter)
	// The reference date is the wall clock truncated to a UTC calendar date.
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), repo.lastToday)
}

func TestFollowUpListReturnsEmptySliceNotNil(t *testing.T) {
	svc := newFollowUpTestService(&followUpRepoStub{}, FollowUpServiceConfig{})

	result, err := svc.List(context.Background(), "loc-1", models.FollowUpFilter{})
	require.NoError(t, err)
	assert.NotNil(t, result.Tasks)
	assert.Empty(t, result.Tasks)
}

func TestCreateFollowUpLog(t *testing.T) {
	repo := &followUpRepoStub{admissions: map[string]string{"adm-1": "loc-1"}}
	svc := newFollowUpTestService(repo, FollowUpServiceConfig{})

	due := "2026-09-05"
	log, err := svc.CreateLog(context.Background(), "loc-1", "user-1", "adm-1", CreateFollowUpLogRequest{
		Note:            "promised to pay friday",
		NextTaskDueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "adm-1", log.AdmissionID)
	assert.Equal(t, "user-1", log.CreatedBy)
	require.NotNil(t, log.NextTaskDueDate)
	assert.Equal(t, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), *log.NextTaskDueDate)
	assert.NotNil(t, repo.logged)
}

func TestCreateFollowUpLogRejectsForeignAdmission(t *testing.T) {
	repo := &followUpRepoStub{admissions: map[string]string{"adm-1": "loc-2"}}
	svc := newFollowUpTestService(repo, FollowUpServiceConfig{})

	_, err := svc.CreateLog(context.Background(), "loc-1", "user-1", "adm-1", CreateFollowUpLogRequest{Note: "call"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.logged)
}

func TestCreateFollowUpLogUnknownAdmission(t *testing.T) {
	repo := &followUpRepoStub{admissions: map[string]string{}}
	svc := newFollowUpTestService(repo, FollowUpServiceConfig{})

	_, err := svc.CreateLog(context.Background(), "loc-1", "user-1", "adm-missing", CreateFollowUpLogRequest{Note: "call"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFollowUpExportDisabled(t *testing.T) {
	svc := newFollowUpTestService(&followUpRepoStub{}, FollowUpServiceConfig{ExportEnabled: false})

	_, _, err := svc.Export(context.Background(), "loc-1", models.FollowUpFilter{}, ExportCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFollowUpExportCSV(t *testing.T) {
	assigned := "user-1"
	repo := &followUpRepoStub{tasks: []models.FollowUpTask{{
		AdmissionID: "adm-1", StudentName: "Ravi Kumar", BatchName: "Morning Maths",
		AssignedTo:      &assigned,
		NextTaskDueDate: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		TotalDueAmount:  1500,
	}}}
	svc := newFollowUpTestService(repo, FollowUpServiceConfig{ExportEnabled: true})

	payload, contentType, err := svc.Export(context.Background(), "loc-1", models.FollowUpFilter{}, ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.True(t, strings.Contains(body, "Ravi Kumar"))
	assert.True(t, strings.Contains(body, "1500.00"))
}

func TestFollowUpExportCapsRows(t *testing.T) {
	repo := &followUpRepoStub{}
	for i := 0; i < 5; i++ {
		repo.tasks = append(repo.tasks, models.FollowUpTask{
			AdmissionID:     "adm-1",
			StudentName:     "Ravi Kumar",
			NextTaskDueDate: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
			TotalDueAmount:  100,
		})
	}
	svc := newFollowUpTestService(repo, FollowUpServiceConfig{ExportEnabled: true, MaxExportRows: 2})

	payload, _, err := svc.Export(context.Background(), "loc-1", models.FollowUpFilter{}, ExportCSV)
	require.NoError(t, err)
	// Header plus two capped rows.
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	assert.Len(t, lines, 3)
}

func TestFollowUpExportRejectsUnknownFormat(t *testing.T) {
	svc := newFollowUpTestService(&followUpRepoStub{}, FollowUpServiceConfig{ExportEnabled: true})

	_, _, err := svc.Export(context.Background(), "loc-1", models.FollowUpFilter{}, ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
