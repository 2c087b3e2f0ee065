package service

import (
	"context"
	"fmt"

	"github.com/edustack/institute-api/internal/models"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/timeslot"
)

type batchByFacultyReader interface {
	ListByFaculty(ctx context.Context, locationID, facultyID, excludeBatchID string) ([]models.Batch, error)
}

type substituteDutyReader interface {
	ListBySubstitute(ctx context.Context, locationID, facultyID, excludeID string, dates timeslot.DateRange) ([]models.SubstitutionDetail, error)
}

type weekReader interface {
	ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error)
}

// ConflictChecker holds the one implementation of the availability-containment
// and schedule-overlap rules. Create, update, permanent assignment and the
// suggestion query all go through it so the semantics cannot drift apart.
type ConflictChecker struct {
	availability  weekReader
	batches       batchByFacultyReader
	substitutions substituteDutyReader
}

// NewConflictChecker wires the checker against its readers.
func NewConflictChecker(availability weekReader, batches batchByFacultyReader, substitutions substituteDutyReader) *ConflictChecker {
	return &ConflictChecker{availability: availability, batches: batches, substitutions: substitutions}
}

// CheckAvailability verifies the faculty has a weekly window fully containing
// the time range on every weekday the assignment runs. Violations are 400s
// naming the offending day.
func (c *ConflictChecker) CheckAvailability(ctx context.Context, facultyID string, days timeslot.DaySet, rng timeslot.Range) error {
	slots, err := c.availability.ListByFaculty(ctx, facultyID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	windows := make(map[timeslot.Weekday]timeslot.Range, len(slots))
	for _, slot := range slots {
		day, err := timeslot.ParseWeekday(slot.DayOfWeek)
		if err != nil {
			continue
		}
		window, err := slot.Window()
		if err != nil {
			continue
		}
		windows[day] = window
	}

	for _, day := range days.List() {
		window, ok := windows[day]
		if !ok {
			return appErrors.Clone(appErrors.ErrAvailability, fmt.Sprintf("faculty has no availability on %s", day))
		}
		if !window.Contains(rng) {
			return appErrors.Clone(appErrors.ErrAvailability,
				fmt.Sprintf("requested %s falls outside the %s availability window %s", rng, day, window))
		}
	}
	return nil
}

// CheckPermanentOverlap scans the faculty's permanent batches at the branch
// for a three-way (weekday, date range, time window) collision.
func (c *ConflictChecker) CheckPermanentOverlap(ctx context.Context, locationID, facultyID, excludeBatchID string, days timeslot.DaySet, dates timeslot.DateRange, rng timeslot.Range) error {
	batches, err := c.batches.ListByFaculty(ctx, locationID, facultyID, excludeBatchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty batches")
	}

	for _, batch := range batches {
		batchDays, err := batch.Days()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse batch schedule")
		}
		batchRange, err := batch.TimeRange()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse batch times")
		}
		if timeslot.RecurringOverlap(days, dates, rng, batchDays, batch.Dates(), batchRange) {
			return overlapError(facultyID, "permanent", batch.ID, batch.Name, batchDays, batchRange)
		}
	}
	return nil
}

// CheckTemporaryOverlap scans the faculty's other active substitution duties
// at the branch with the same three-way test. excludeID removes the record
// being updated from its own scan.
func (c *ConflictChecker) CheckTemporaryOverlap(ctx context.Context, locationID, facultyID, excludeID string, days timeslot.DaySet, dates timeslot.DateRange, rng timeslot.Range) error {
	duties, err := c.substitutions.ListBySubstitute(ctx, locationID, facultyID, excludeID, dates)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution duties")
	}

	for _, duty := range duties {
		dutyDays, err := duty.BatchDaySet()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse substituted batch schedule")
		}
		dutyRange, err := duty.BatchTimeRange()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse substituted batch times")
		}
		if timeslot.RecurringOverlap(days, dates, rng, dutyDays, duty.Dates(), dutyRange) {
			return overlapError(facultyID, "temporary", duty.BatchID, duty.BatchName, dutyDays, dutyRange)
		}
	}
	return nil
}

func overlapError(facultyID, kind, batchID, batchName string, days timeslot.DaySet, rng timeslot.Range) error {
	conflict := models.ScheduleConflict{
		BatchID:   batchID,
		BatchName: batchName,
		FacultyID: facultyID,
		Kind:      kind,
		Days:      days.Join(),
		TimeSlot:  rng.String(),
	}
	message := fmt.Sprintf("faculty already committed to batch %q (%s, %s)", batchName, conflict.Days, conflict.TimeSlot)
	domainErr := &models.ScheduleConflictError{Message: message, Conflict: conflict}
	return appErrors.Wrap(domainErr, appErrors.ErrScheduleOverlap.Code, appErrors.ErrScheduleOverlap.Status, message)
}
