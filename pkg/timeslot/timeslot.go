package timeslot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weekday is the canonical uppercase day name used across schedules.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdayNames = map[string]Weekday{
	"MONDAY":    Monday,
	"MON":       Monday,
	"TUESDAY":   Tuesday,
	"TUE":       Tuesday,
	"TUES":      Tuesday,
	"WEDNESDAY": Wednesday,
	"WED":       Wednesday,
	"THURSDAY":  Thursday,
	"THU":       Thursday,
	"THUR":      Thursday,
	"THURS":     Thursday,
	"FRIDAY":    Friday,
	"FRI":       Friday,
	"SATURDAY":  Saturday,
	"SAT":       Saturday,
	"SUNDAY":    Sunday,
	"SUN":       Sunday,
}

// ParseWeekday normalises a free-text day name into a Weekday.
func ParseWeekday(raw string) (Weekday, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if day, ok := weekdayNames[key]; ok {
		return day, nil
	}
	return "", fmt.Errorf("unknown weekday %q", raw)
}

// FromTime converts a time.Weekday into the canonical Weekday.
func FromTime(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// DaySet is a set of weekdays a recurring schedule runs on.
type DaySet map[Weekday]bool

// ParseDaySet normalises a list of free-text day names into a DaySet.
func ParseDaySet(raw []string) (DaySet, error) {
	set := make(DaySet, len(raw))
	for _, item := range raw {
		day, err := ParseWeekday(item)
		if err != nil {
			return nil, err
		}
		set[day] = true
	}
	return set, nil
}

// ParseDayList accepts a comma-joined serialization of day names.
func ParseDayList(raw string) (DaySet, error) {
	if strings.TrimSpace(raw) == "" {
		return DaySet{}, nil
	}
	return ParseDaySet(strings.Split(raw, ","))
}

// Contains reports whether the set includes the given day.
func (s DaySet) Contains(day Weekday) bool {
	return s[day]
}

// Intersects reports whether two day sets share at least one day.
func (s DaySet) Intersects(other DaySet) bool {
	for day := range s {
		if s[day] && other[day] {
			return true
		}
	}
	return false
}

// List returns the days in a stable Monday-first order.
func (s DaySet) List() []Weekday {
	ordered := []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
	var out []Weekday
	for _, day := range ordered {
		if s[day] {
			out = append(out, day)
		}
	}
	return out
}

// Join serializes the set into the canonical comma-joined form.
func (s DaySet) Join() string {
	days := s.List()
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = string(day)
	}
	return strings.Join(parts, ",")
}

// Range is a half-open [Start, End) time-of-day interval in minutes since
// midnight.
type Range struct {
	Start int
	End   int
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return hh*60 + mm, nil
}

// FormatClock renders minutes since midnight as "HH:MM:SS".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

// ParseRange builds a Range from two clock strings, requiring end after start.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, err
	}
	if e <= s {
		return Range{}, fmt.Errorf("end time %s must be after start time %s", end, start)
	}
	return Range{Start: s, End: e}, nil
}

// String renders the range as "HH:MM:SS - HH:MM:SS".
func (r Range) String() string {
	return FormatClock(r.Start) + " - " + FormatClock(r.End)
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Contains reports whether the other range fits entirely inside r.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Merge folds overlapping or adjacent ranges into non-overlapping spans
// sorted by start.
func Merge(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Range{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if current.Start <= last.End {
			if current.End > last.End {
				last.End = current.End
			}
			continue
		}
		merged = append(merged, current)
	}
	return merged
}

// Subtract removes the busy ranges from the window, returning the free
// sub-intervals in order. Busy ranges must not overlap (use Merge first).
func Subtract(window Range, busy []Range) []Range {
	var free []Range
	cursor := window.Start
	for _, b := range busy {
		if b.End <= window.Start || b.Start >= window.End {
			continue
		}
		if b.Start > cursor {
			free = append(free, Range{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		free = append(free, Range{Start: cursor, End: window.End})
	}
	return free
}

// DateRange is an inclusive calendar date span.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a "YYYY-MM-DD" value into a UTC date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

// ParseDateRange builds a DateRange requiring end on or after start.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s precedes start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// Covers reports whether the date falls inside the inclusive range.
func (d DateRange) Covers(date time.Time) bool {
	return !date.Before(d.Start) && !date.After(d.End)
}

// Overlaps reports whether two inclusive date ranges intersect.
func (d DateRange) Overlaps(other DateRange) bool {
	return !d.End.Before(other.Start) && !other.End.Before(d.Start)
}

// Each invokes fn for every date in the range in ascending order.
func (d DateRange) Each(fn func(date time.Time)) {
	for date := d.Start; !date.After(d.End); date = date.AddDate(0, 0, 1) {
		fn(date)
	}
}

// RecurringOverlap is the single conflict predicate for recurring schedules:
// two commitments collide only when their weekday sets intersect, their date
// ranges intersect, and their time windows overlap.
func RecurringOverlap(daysA DaySet, datesA DateRange, timeA Range, daysB DaySet, datesB DateRange, timeB Range) bool {
	if !daysA.Intersects(daysB) {
		return false
	}
	if !datesA.Overlaps(datesB) {
		return false
	}
	return timeA.Overlaps(timeB)
}
