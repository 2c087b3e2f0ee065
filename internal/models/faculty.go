package models

import "time"

// Faculty represents a teaching staff member attached to a branch.
type Faculty struct {
	ID         string    `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	LocationID string    `db:"location_id" json:"location_id"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyRef is the slim identity shape embedded in scheduling responses.
type FacultyRef struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"full_name" json:"name"`
}
