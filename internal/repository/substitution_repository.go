package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/pkg/timeslot"
)

// ErrSubstitutionExcluded is returned when the store's exclusion constraint
// rejects a substitution whose date range overlaps another one for the same
// batch. This backstops the application-level conflict checks under races.
var ErrSubstitutionExcluded = errors.New("substitution date range overlaps an existing substitution for this batch")

// pq exclusion_violation
const pqExclusionViolation = "23P01"

// SubstitutionRepository provides persistence for temporary reassignments.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository creates a new substitution repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

const substitutionColumns = `id, batch_id, original_faculty_id, substitute_faculty_id, location_id, start_date, end_date, notes, created_at, updated_at`

const substitutionDetailColumns = `s.id, s.batch_id, s.original_faculty_id, s.substitute_faculty_id, s.location_id, s.start_date, s.end_date, s.notes, s.created_at, s.updated_at,
	b.name AS batch_name, b.start_time AS batch_start_time, b.end_time AS batch_end_time, b.days_of_week AS batch_days`

// FindByID loads a substitution by id.
func (r *SubstitutionRepository) FindByID(ctx context.Context, id string) (*models.Substitution, error) {
	query := `SELECT ` + substitutionColumns + ` FROM substitutions WHERE id = $1`
	var sub models.Substitution
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create stores a new substitution record.
func (r *SubstitutionRepository) Create(ctx context.Context, sub *models.Substitution) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	const query = `INSERT INTO substitutions (id, batch_id, original_faculty_id, substitute_faculty_id, location_id, start_date, end_date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query, sub.ID, sub.BatchID, sub.OriginalFacultyID, sub.SubstituteFacultyID, sub.LocationID, sub.StartDate, sub.EndDate, sub.Notes, sub.CreatedAt, sub.UpdatedAt); err != nil {
		return wrapExclusion(err, "create substitution")
	}
	return nil
}

// Update rewrites a substitution record.
func (r *SubstitutionRepository) Update(ctx context.Context, sub *models.Substitution) error {
	sub.UpdatedAt = time.Now().UTC()
	const query = `UPDATE substitutions SET substitute_faculty_id = $2, start_date = $3, end_date = $4, notes = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sub.ID, sub.SubstituteFacultyID, sub.StartDate, sub.EndDate, sub.Notes, sub.UpdatedAt); err != nil {
		return wrapExclusion(err, "update substitution")
	}
	return nil
}

// Delete cancels a substitution.
func (r *SubstitutionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM substitutions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete substitution: %w", err)
	}
	return nil
}

// ListBySubstitute returns a faculty's substitutions at a branch whose date
// windows intersect the given range, joined with batch slot geometry. The
// record identified by excludeID is skipped, which update operations use to
// avoid matching themselves.
func (r *SubstitutionRepository) ListBySubstitute(ctx context.Context, locationID, facultyID, excludeID string, dates timeslot.DateRange) ([]models.SubstitutionDetail, error) {
	query := `SELECT ` + substitutionDetailColumns + `
		FROM substitutions s
		JOIN batches b ON b.id = s.batch_id
		WHERE s.location_id = $1 AND s.substitute_faculty_id = $2 AND s.start_date <= $3 AND s.end_date >= $4`
	args := []interface{}{locationID, facultyID, dates.End, dates.Start}
	if excludeID != "" {
		query += ` AND s.id <> $5`
		args = append(args, excludeID)
	}
	var subs []models.SubstitutionDetail
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list substitutions by substitute: %w", err)
	}
	return subs, nil
}

// ListBySubstitutesInRange returns substitutions where any of the given
// faculty is the substitute, for busy-interval derivation.
func (r *SubstitutionRepository) ListBySubstitutesInRange(ctx context.Context, locationID string, facultyIDs []string, dates timeslot.DateRange) ([]models.SubstitutionDetail, error) {
	if len(facultyIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+substitutionDetailColumns+`
		FROM substitutions s
		JOIN batches b ON b.id = s.batch_id
		WHERE s.location_id = ? AND s.substitute_faculty_id IN (?) AND s.start_date <= ? AND s.end_date >= ?`,
		locationID, facultyIDs, dates.End, dates.Start)
	if err != nil {
		return nil, fmt.Errorf("build substitution range query: %w", err)
	}
	query = r.db.Rebind(query)
	var subs []models.SubstitutionDetail
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list substitutions in range: %w", err)
	}
	return subs, nil
}

// ListForBatchesInRange returns substitutions covering any of the given
// batches within the date range, used to free the original assignee on
// substituted dates.
func (r *SubstitutionRepository) ListForBatchesInRange(ctx context.Context, batchIDs []string, dates timeslot.DateRange) ([]models.Substitution, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+substitutionColumns+` FROM substitutions WHERE batch_id IN (?) AND start_date <= ? AND end_date >= ?`,
		batchIDs, dates.End, dates.Start)
	if err != nil {
		return nil, fmt.Errorf("build batch substitution query: %w", err)
	}
	query = r.db.Rebind(query)
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list substitutions for batches: %w", err)
	}
	return subs, nil
}

func wrapExclusion(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqExclusionViolation {
		return fmt.Errorf("%s: %w", op, ErrSubstitutionExcluded)
	}
	return fmt.Errorf("%s: %w", op, err)
}
