package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edustack/institute-api/internal/models"
)

// FacultyRepository provides persistence for faculty records.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// FindByID loads a faculty by id.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	const query = `SELECT id, full_name, email, phone, location_id, active, created_at, updated_at FROM faculty WHERE id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// ListActive returns all active faculty at a branch ordered by name.
func (r *FacultyRepository) ListActive(ctx context.Context, locationID string) ([]models.Faculty, error) {
	const query = `SELECT id, full_name, email, phone, location_id, active, created_at, updated_at FROM faculty WHERE location_id = $1 AND active = TRUE ORDER BY full_name ASC`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, locationID); err != nil {
		return nil, fmt.Errorf("list active faculty: %w", err)
	}
	return faculty, nil
}

// ListBySkill returns active faculty at a branch holding the given skill.
func (r *FacultyRepository) ListBySkill(ctx context.Context, locationID, skillID string) ([]models.Faculty, error) {
	const query = `SELECT f.id, f.full_name, f.email, f.phone, f.location_id, f.active, f.created_at, f.updated_at
		FROM faculty f
		JOIN faculty_skills fs ON fs.faculty_id = f.id
		WHERE f.location_id = $1 AND f.active = TRUE AND fs.skill_id = $2
		ORDER BY f.full_name ASC`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, locationID, skillID); err != nil {
		return nil, fmt.Errorf("list faculty by skill: %w", err)
	}
	return faculty, nil
}
