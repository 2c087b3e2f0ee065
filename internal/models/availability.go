package models

import (
	"time"

	"github.com/edustack/institute-api/pkg/timeslot"
)

// AvailabilitySlot is one weekday window of a faculty's recurring weekly
// availability. Times are stored as HH:MM:SS text.
type AvailabilitySlot struct {
	ID        string    `db:"id" json:"id"`
	FacultyID string    `db:"faculty_id" json:"faculty_id"`
	DayOfWeek string    `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Window parses the stored times into a minute-of-day range.
func (s AvailabilitySlot) Window() (timeslot.Range, error) {
	return timeslot.ParseRange(s.StartTime, s.EndTime)
}

// WeekWindows indexes a faculty's availability by canonical weekday. Absence
// of a weekday means the faculty has no free time that day.
type WeekWindows map[timeslot.Weekday]timeslot.Range
