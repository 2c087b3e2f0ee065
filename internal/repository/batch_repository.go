package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/pkg/timeslot"
)

// BatchRepository provides persistence for recurring batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, name, faculty_id, location_id, start_date, end_date, start_time, end_time, days_of_week, created_at, updated_at`

// FindByID loads a batch by id.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListByFaculty returns every batch permanently assigned to a faculty at a
// branch, optionally excluding one batch id.
func (r *BatchRepository) ListByFaculty(ctx context.Context, locationID, facultyID, excludeBatchID string) ([]models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE location_id = $1 AND faculty_id = $2`
	args := []interface{}{locationID, facultyID}
	if excludeBatchID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeBatchID)
	}
	query += ` ORDER BY start_date ASC`
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("list batches by faculty: %w", err)
	}
	return batches, nil
}

// ListByFacultiesInRange returns batches for a faculty set whose active date
// ranges intersect the given range.
func (r *BatchRepository) ListByFacultiesInRange(ctx context.Context, locationID string, facultyIDs []string, dates timeslot.DateRange) ([]models.Batch, error) {
	if len(facultyIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+batchColumns+` FROM batches WHERE location_id = ? AND faculty_id IN (?) AND start_date <= ? AND end_date >= ?`,
		locationID, facultyIDs, dates.End, dates.Start)
	if err != nil {
		return nil, fmt.Errorf("build batch range query: %w", err)
	}
	query = r.db.Rebind(query)
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("list batches in range: %w", err)
	}
	return batches, nil
}

// UpdateFaculty repoints a batch to a new permanent assignee.
func (r *BatchRepository) UpdateFaculty(ctx context.Context, batchID, facultyID string) error {
	const query = `UPDATE batches SET faculty_id = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, batchID, facultyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch faculty: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update batch faculty: batch %s not found", batchID)
	}
	return nil
}
