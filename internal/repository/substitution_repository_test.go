package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/pkg/timeslot"
)

func newSubstitutionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func testDates(t *testing.T, start, end string) timeslot.DateRange {
	t.Helper()
	dates, err := timeslot.ParseDateRange(start, end)
	require.NoError(t, err)
	return dates
}

func TestSubstitutionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewSubstitutionRepository(db)

	mock.ExpectExec("INSERT INTO substitutions").
		WithArgs(sqlmock.AnyArg(), "batch-1", "fac-1", "fac-2", "loc-1", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sub := &models.Substitution{
		BatchID:             "batch-1",
		OriginalFacultyID:   "fac-1",
		SubstituteFacultyID: "fac-2",
		LocationID:          "loc-1",
		StartDate:           time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), sub)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitutionRepositoryCreateExclusionViolation(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewSubstitutionRepository(db)

	mock.ExpectExec("INSERT INTO substitutions").
		WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})

	err := repo.Create(context.Background(), &models.Substitution{BatchID: "batch-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubstitutionExcluded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitutionRepositoryUpdateExclusionViolation(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewSubstitutionRepository(db)

	mock.ExpectExec("UPDATE substitutions SET").
		WillReturnError(&pq.Error{Code: "23P01"})

	err := repo.Update(context.Background(), &models.Substitution{ID: "sub-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubstitutionExcluded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitutionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewSubstitutionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM substitutions WHERE id = $1")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "sub-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitutionRepositoryListBySubstitute(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewSubstitutionRepository(db)

	now := time.Now()
	cols := []string{
		"id", "batch_id", "original_faculty_id", "substitute_faculty_id", "location_id",
		"start_date", "end_date", "notes", "created_at", "updated_at",
		"batch_name", "batch_start_time", "batch_end_time", "batch_days",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("sub-1", "batch-1", "fac-1", "fac-2", "loc-1",
			time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), nil, now, now,
			"Morning Maths", "09:00:00", "10:30:00", "MONDAY,WEDNESDAY")

	mock.ExpectQuery("FROM substitutions s").
		WithArgs("loc-1", "fac-2", sqlmock.AnyArg(), sqlmock.AnyArg(), "sub-9").
		WillReturnRows(rows)

	subs, err := repo.ListBySubstitute(context.Background(), "loc-1", "fac-2", "sub-9", testDates(t, "2026-09-01", "2026-09-07"))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Morning Maths", subs[0].BatchName)

	days, err := subs[0].BatchDaySet()
	require.NoError(t, err)
	assert.True(t, days.Contains(timeslot.Monday))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitutionRepositoryListForBatchesInRange(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewSubstitutionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "batch_id", "original_faculty_id", "substitute_faculty_id", "location_id",
		"start_date", "end_date", "notes", "created_at", "updated_at",
	}).AddRow("sub-1", "batch-1", "fac-1", "fac-2", "loc-1",
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), nil, now, now)

	mock.ExpectQuery("FROM substitutions WHERE batch_id IN").
		WillReturnRows(rows)

	subs, err := repo.ListForBatchesInRange(context.Background(), []string{"batch-1", "batch-2"}, testDates(t, "2026-09-01", "2026-09-30"))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "fac-2", subs[0].SubstituteFacultyID)
	assert.NoError(t, mock.ExpectationsWereMet())

	subs, err = repo.ListForBatchesInRange(context.Background(), nil, testDates(t, "2026-09-01", "2026-09-30"))
	require.NoError(t, err)
	assert.Nil(t, subs)
}
