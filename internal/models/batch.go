package models

import (
	"time"

	"github.com/edustack/institute-api/pkg/timeslot"
)

// Batch represents a recurring class: a weekday pattern repeated between an
// inclusive start and end date, taught by one permanent faculty.
type Batch struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	FacultyID  string    `db:"faculty_id" json:"faculty_id"`
	LocationID string    `db:"location_id" json:"location_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	DaysOfWeek string    `db:"days_of_week" json:"days_of_week"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Days parses the stored comma-joined weekday names.
func (b Batch) Days() (timeslot.DaySet, error) {
	return timeslot.ParseDayList(b.DaysOfWeek)
}

// TimeRange parses the stored class times into a minute-of-day range.
func (b Batch) TimeRange() (timeslot.Range, error) {
	return timeslot.ParseRange(b.StartTime, b.EndTime)
}

// Dates returns the batch's inclusive active date span.
func (b Batch) Dates() timeslot.DateRange {
	return timeslot.DateRange{Start: b.StartDate, End: b.EndDate}
}

// ActiveOn reports whether the batch runs at all on the given date.
func (b Batch) ActiveOn(date time.Time) bool {
	return b.Dates().Covers(date)
}
