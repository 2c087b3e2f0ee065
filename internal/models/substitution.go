package models

import (
	"time"

	"github.com/edustack/institute-api/pkg/timeslot"
)

// Substitution temporarily reassigns a batch to another faculty for a date
// window. During the window the substitute is busy for the batch slot and the
// original assignee is freed.
type Substitution struct {
	ID                  string    `db:"id" json:"id"`
	BatchID             string    `db:"batch_id" json:"batch_id"`
	OriginalFacultyID   string    `db:"original_faculty_id" json:"original_faculty_id"`
	SubstituteFacultyID string    `db:"substitute_faculty_id" json:"substitute_faculty_id"`
	LocationID          string    `db:"location_id" json:"location_id"`
	StartDate           time.Time `db:"start_date" json:"start_date"`
	EndDate             time.Time `db:"end_date" json:"end_date"`
	Notes               *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Dates returns the substitution's inclusive date window.
func (s Substitution) Dates() timeslot.DateRange {
	return timeslot.DateRange{Start: s.StartDate, End: s.EndDate}
}

// SubstitutionDetail joins a substitution with the slot geometry of its batch,
// which is what conflict checks and busy-interval derivation operate on.
type SubstitutionDetail struct {
	Substitution
	BatchName      string `db:"batch_name" json:"batch_name"`
	BatchStartTime string `db:"batch_start_time" json:"batch_start_time"`
	BatchEndTime   string `db:"batch_end_time" json:"batch_end_time"`
	BatchDays      string `db:"batch_days" json:"batch_days"`
}

// BatchDaySet parses the joined batch weekday list.
func (d SubstitutionDetail) BatchDaySet() (timeslot.DaySet, error) {
	return timeslot.ParseDayList(d.BatchDays)
}

// BatchTimeRange parses the joined batch class times.
func (d SubstitutionDetail) BatchTimeRange() (timeslot.Range, error) {
	return timeslot.ParseRange(d.BatchStartTime, d.BatchEndTime)
}

// ScheduleConflict names the commitment that blocked an assignment.
type ScheduleConflict struct {
	BatchID   string `json:"batch_id"`
	BatchName string `json:"batch_name"`
	FacultyID string `json:"faculty_id"`
	Kind      string `json:"kind"`
	Days      string `json:"days"`
	TimeSlot  string `json:"time_slot"`
}

// ScheduleConflictError is returned when an assignment collides with an
// existing commitment.
type ScheduleConflictError struct {
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
