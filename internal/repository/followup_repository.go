package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edustack/institute-api/internal/models"
)

// FollowUpRepository reads the store's follow_up_tasks view and writes
// follow-up logs. The view joins admissions, payments and logs; this layer
// only filters and counts it.
type FollowUpRepository struct {
	db *sqlx.DB
}

// NewFollowUpRepository creates a new follow-up repository.
func NewFollowUpRepository(db *sqlx.DB) *FollowUpRepository {
	return &FollowUpRepository{db: db}
}

const followUpColumns = `admission_id, student_name, batch_name, assigned_to, location_id, next_task_due_date, total_due_amount, last_log_created_at`

// Counts runs the three bucket count queries. A task is "due today" only if
// it has not already been actioned today.
func (r *FollowUpRepository) Counts(ctx context.Context, locationID string, today time.Time) (models.FollowUpCounts, error) {
	var counts models.FollowUpCounts

	const base = `SELECT COUNT(*) FROM follow_up_tasks WHERE location_id = $1 AND total_due_amount > 0`

	todayQuery := base + ` AND next_task_due_date = $2 AND (last_log_created_at IS NULL OR last_log_created_at::date < $2)`
	if err := r.db.GetContext(ctx, &counts.Today, todayQuery, locationID, today); err != nil {
		return counts, fmt.Errorf("count today follow-ups: %w", err)
	}

	if err := r.db.GetContext(ctx, &counts.Overdue, base+` AND next_task_due_date < $2`, locationID, today); err != nil {
		return counts, fmt.Errorf("count overdue follow-ups: %w", err)
	}

	if err := r.db.GetContext(ctx, &counts.Upcoming, base+` AND next_task_due_date > $2`, locationID, today); err != nil {
		return counts, fmt.Errorf("count upcoming follow-ups: %w", err)
	}

	return counts, nil
}

// List returns the filtered worklist sorted ascending by due date.
func (r *FollowUpRepository) List(ctx context.Context, locationID string, filter models.FollowUpFilter, today time.Time) ([]models.FollowUpTask, error) {
	base := `FROM follow_up_tasks WHERE location_id = $1 AND total_due_amount > 0`
	args := []interface{}{locationID}
	var conditions []string

	next := func() int { return len(args) + 1 }

	switch filter.DateFilter {
	case models.FollowUpToday:
		conditions = append(conditions, fmt.Sprintf("next_task_due_date = $%d", next()))
		args = append(args, today)
		conditions = append(conditions, fmt.Sprintf("(last_log_created_at IS NULL OR last_log_created_at::date < $%d)", next()))
		args = append(args, today)
	case models.FollowUpOverdue:
		conditions = append(conditions, fmt.Sprintf("next_task_due_date < $%d", next()))
		args = append(args, today)
	case models.FollowUpUpcoming:
		conditions = append(conditions, fmt.Sprintf("next_task_due_date > $%d", next()))
		args = append(args, today)
	}

	if filter.SearchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("student_name ILIKE $%d", next()))
		args = append(args, "%"+filter.SearchTerm+"%")
	}
	if filter.BatchName != "" {
		conditions = append(conditions, fmt.Sprintf("batch_name = $%d", next()))
		args = append(args, filter.BatchName)
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", next()))
		args = append(args, filter.AssignedTo)
	}
	if filter.DueAmountMin > 0 {
		conditions = append(conditions, fmt.Sprintf("total_due_amount >= $%d", next()))
		args = append(args, filter.DueAmountMin)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("next_task_due_date >= $%d", next()))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("next_task_due_date <= $%d", next()))
		args = append(args, *filter.EndDate)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY next_task_due_date ASC", followUpColumns, base)
	var tasks []models.FollowUpTask
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list follow-up tasks: %w", err)
	}
	return tasks, nil
}

// AdmissionLocation resolves which branch an admission belongs to.
func (r *FollowUpRepository) AdmissionLocation(ctx context.Context, admissionID string) (string, error) {
	const query = `SELECT location_id FROM admissions WHERE id = $1`
	var locationID string
	if err := r.db.GetContext(ctx, &locationID, query, admissionID); err != nil {
		return "", err
	}
	return locationID, nil
}

// CreateLog records a collection contact.
func (r *FollowUpRepository) CreateLog(ctx context.Context, log *models.FollowUpLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO follow_up_logs (id, admission_id, location_id, note, next_task_due_date, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, log.ID, log.AdmissionID, log.LocationID, log.Note, log.NextTaskDueDate, log.CreatedBy, log.CreatedAt); err != nil {
		return fmt.Errorf("create follow-up log: %w", err)
	}
	return nil
}
