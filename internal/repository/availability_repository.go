package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edustack/institute-api/internal/models"
)

// ErrWeekCleared marks the partial-failure window of a weekly availability
// replace: the old week was deleted but the new one did not land. There is no
// transaction wrapping the pair, so the caller must resubmit the week.
var ErrWeekCleared = errors.New("availability week cleared but not repopulated")

// AvailabilityRepository provides persistence for weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, faculty_id, day_of_week, start_time, end_time, created_at`

// ListByFaculty returns a faculty's weekly windows ordered by day.
func (r *AvailabilityRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability_slots WHERE faculty_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, facultyID); err != nil {
		return nil, fmt.Errorf("list availability by faculty: %w", err)
	}
	return slots, nil
}

// ListByFaculties returns windows for a set of faculty in one round trip.
func (r *AvailabilityRepository) ListByFaculties(ctx context.Context, facultyIDs []string) ([]models.AvailabilitySlot, error) {
	if len(facultyIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+availabilityColumns+` FROM availability_slots WHERE faculty_id IN (?)`, facultyIDs)
	if err != nil {
		return nil, fmt.Errorf("build availability query: %w", err)
	}
	query = r.db.Rebind(query)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list availability by faculties: %w", err)
	}
	return slots, nil
}

// ReplaceWeek swaps a faculty's entire weekly schedule using the store's
// delete-then-insert pattern. A failed insert after a successful delete is
// reported as ErrWeekCleared rather than rolled back.
func (r *AvailabilityRepository) ReplaceWeek(ctx context.Context, facultyID string, slots []models.AvailabilitySlot) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_slots WHERE faculty_id = $1`, facultyID); err != nil {
		return fmt.Errorf("clear availability week: %w", err)
	}

	const insert = `INSERT INTO availability_slots (id, faculty_id, day_of_week, start_time, end_time, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	now := time.Now().UTC()
	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		slot.FacultyID = facultyID
		slot.CreatedAt = now
		if _, err := r.db.ExecContext(ctx, insert, slot.ID, slot.FacultyID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.CreatedAt); err != nil {
			return fmt.Errorf("%w: insert %s window: %v", ErrWeekCleared, slot.DayOfWeek, err)
		}
	}
	return nil
}
