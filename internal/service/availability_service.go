package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/internal/repository"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/timeslot"
)

type availabilityRepository interface {
	ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error)
	ListByFaculties(ctx context.Context, facultyIDs []string) ([]models.AvailabilitySlot, error)
	ReplaceWeek(ctx context.Context, facultyID string, slots []models.AvailabilitySlot) error
}

type facultyReader interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	ListActive(ctx context.Context, locationID string) ([]models.Faculty, error)
	ListBySkill(ctx context.Context, locationID, skillID string) ([]models.Faculty, error)
}

type batchRangeReader interface {
	ListByFacultiesInRange(ctx context.Context, locationID string, facultyIDs []string, dates timeslot.DateRange) ([]models.Batch, error)
}

type substitutionRangeReader interface {
	ListBySubstitutesInRange(ctx context.Context, locationID string, facultyIDs []string, dates timeslot.DateRange) ([]models.SubstitutionDetail, error)
	ListForBatchesInRange(ctx context.Context, batchIDs []string, dates timeslot.DateRange) ([]models.Substitution, error)
}

type slotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// WeekWindowInput is one weekday window of a weekly availability submission.
type WeekWindowInput struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ReplaceWeekRequest replaces a faculty's entire weekly availability.
type ReplaceWeekRequest struct {
	Windows []WeekWindowInput `json:"windows" validate:"required,min=1,dive"`
}

// FreeSlotsRequest describes the free-slot query.
type FreeSlotsRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	FacultyID string `json:"selected_faculty"`
	SkillID   string `json:"selected_skill"`
}

// DailyFreeSlots lists the free intervals of one calendar date.
type DailyFreeSlots struct {
	Date string   `json:"date"`
	Time []string `json:"time"`
}

// FacultyFreeSlots groups a faculty's free intervals over the queried range.
type FacultyFreeSlots struct {
	Faculty models.FacultyRef `json:"faculty"`
	Slots   []DailyFreeSlots  `json:"slots"`
}

// AvailabilityServiceConfig tunes the free-slot calculator.
type AvailabilityServiceConfig struct {
	CacheTTL     time.Duration
	MaxRangeDays int
}

// AvailabilityService maintains weekly availability and computes free slots.
type AvailabilityService struct {
	availability  availabilityRepository
	faculty       facultyReader
	batches       batchRangeReader
	substitutions substitutionRangeReader
	cache         slotCache
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	config        AvailabilityServiceConfig
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(
	availability availabilityRepository,
	faculty facultyReader,
	batches batchRangeReader,
	substitutions substitutionRangeReader,
	cache slotCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config AvailabilityServiceConfig,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRangeDays <= 0 {
		config.MaxRangeDays = 92
	}
	return &AvailabilityService{
		availability:  availability,
		faculty:       faculty,
		batches:       batches,
		substitutions: substitutions,
		cache:         cache,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		config:        config,
	}
}

// GetWeek returns a faculty's weekly availability windows.
func (s *AvailabilityService) GetWeek(ctx context.Context, locationID, facultyID string) ([]models.AvailabilitySlot, error) {
	if _, err := s.facultyAt(ctx, locationID, facultyID); err != nil {
		return nil, err
	}
	slots, err := s.availability.ListByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	return slots, nil
}

// ReplaceWeek swaps a faculty's weekly availability wholesale. The underlying
// store pattern is delete-then-insert; a failure between the two is surfaced
// as a distinct error instructing resubmission.
func (s *AvailabilityService) ReplaceWeek(ctx context.Context, locationID, facultyID string, req ReplaceWeekRequest) ([]models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if _, err := s.facultyAt(ctx, locationID, facultyID); err != nil {
		return nil, err
	}

	seen := make(map[timeslot.Weekday]bool, len(req.Windows))
	slots := make([]models.AvailabilitySlot, 0, len(req.Windows))
	for _, window := range req.Windows {
		day, err := timeslot.ParseWeekday(window.DayOfWeek)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		if seen[day] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate availability window for %s", day))
		}
		seen[day] = true
		rng, err := timeslot.ParseRange(window.StartTime, window.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		slots = append(slots, models.AvailabilitySlot{
			FacultyID: facultyID,
			DayOfWeek: string(day),
			StartTime: timeslot.FormatClock(rng.Start),
			EndTime:   timeslot.FormatClock(rng.End),
		})
	}

	if err := s.availability.ReplaceWeek(ctx, facultyID, slots); err != nil {
		if errors.Is(err, repository.ErrWeekCleared) {
			s.logger.Error("availability replace left schedule cleared", zap.String("faculty_id", facultyID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrScheduleCleared.Code, appErrors.ErrScheduleCleared.Status, appErrors.ErrScheduleCleared.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability")
	}

	s.invalidateSlots(ctx, locationID)
	return slots, nil
}

// FreeSlots computes per-faculty, per-date free intervals over a date range.
func (s *AvailabilityService) FreeSlots(ctx context.Context, locationID string, req FreeSlotsRequest) ([]FacultyFreeSlots, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid free-slot query")
	}
	dates, err := timeslot.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if days := int(dates.End.Sub(dates.Start).Hours()/24) + 1; days > s.config.MaxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.config.MaxRangeDays))
	}

	cacheKey := fmt.Sprintf("freeslots:%s:%s:%s:%s:%s", locationID, req.StartDate, req.EndDate, req.FacultyID, req.SkillID)
	if s.cache != nil {
		var cached []FacultyFreeSlots
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
	}
	computeStart := time.Now()

	// The skill filter narrows the faculty allowlist before any slot math.
	roster, err := s.resolveRoster(ctx, locationID, req.FacultyID, req.SkillID)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return []FacultyFreeSlots{}, nil
	}

	facultyIDs := make([]string, len(roster))
	for i, f := range roster {
		facultyIDs[i] = f.ID
	}

	windows, err := s.loadWindows(ctx, facultyIDs)
	if err != nil {
		return nil, err
	}

	batches, err := s.batches.ListByFacultiesInRange(ctx, locationID, facultyIDs, dates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batches")
	}
	commitments, batchIDs, err := indexBatchCommitments(batches)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse batch schedules")
	}

	subs, err := s.substitutions.ListBySubstitutesInRange(ctx, locationID, facultyIDs, dates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitutions")
	}
	coverDuties, err := indexCoverDuties(subs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to parse substitutions")
	}

	batchSubs, err := s.substitutions.ListForBatchesInRange(ctx, batchIDs, dates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch substitutions")
	}
	subsByBatch := make(map[string][]models.Substitution)
	for _, sub := range batchSubs {
		subsByBatch[sub.BatchID] = append(subsByBatch[sub.BatchID], sub)
	}

	var result []FacultyFreeSlots
	for _, f := range roster {
		week := windows[f.ID]
		if len(week) == 0 {
			// No availability records at all: implicitly fully busy.
			continue
		}

		var daily []DailyFreeSlots
		dates.Each(func(date time.Time) {
			day := timeslot.FromTime(date.Weekday())
			window, ok := week[day]
			if !ok {
				return
			}

			var busy []timeslot.Range
			for _, c := range commitments[f.ID] {
				if !c.days.Contains(day) || !c.dates.Covers(date) {
					continue
				}
				if reassignedAway(subsByBatch[c.batchID], f.ID, date) {
					continue
				}
				busy = append(busy, c.time)
			}
			for _, duty := range coverDuties[f.ID] {
				if duty.dates.Covers(date) && duty.days.Contains(day) {
					busy = append(busy, duty.time)
				}
			}

			free := timeslot.Subtract(window, timeslot.Merge(busy))
			if len(free) == 0 {
				return
			}
			times := make([]string, len(free))
			for i, rng := range free {
				times[i] = rng.String()
			}
			daily = append(daily, DailyFreeSlots{Date: date.Format("2006-01-02"), Time: times})
		})

		if len(daily) > 0 {
			result = append(result, FacultyFreeSlots{
				Faculty: models.FacultyRef{ID: f.ID, Name: f.FullName},
				Slots:   daily,
			})
		}
	}
	if result == nil {
		result = []FacultyFreeSlots{}
	}
	if s.metrics != nil {
		s.metrics.ObserveSlotComputation(time.Since(computeStart))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.config.CacheTTL); err != nil {
			s.logger.Warn("free-slot cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// InvalidateSlots drops cached free-slot payloads for a branch. Schedule
// mutations in other services call this through the shared cache.
func (s *AvailabilityService) invalidateSlots(ctx context.Context, locationID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "freeslots:"+locationID+":*"); err != nil {
		s.logger.Warn("free-slot cache invalidation failed", zap.String("location_id", locationID), zap.Error(err))
	}
}

func (s *AvailabilityService) facultyAt(ctx context.Context, locationID, facultyID string) (*models.Faculty, error) {
	faculty, err := s.faculty.FindByID(ctx, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if faculty.LocationID != locationID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "faculty belongs to another branch")
	}
	return faculty, nil
}

func (s *AvailabilityService) resolveRoster(ctx context.Context, locationID, facultyID, skillID string) ([]models.Faculty, error) {
	if facultyID != "" {
		faculty, err := s.facultyAt(ctx, locationID, facultyID)
		if err != nil {
			return nil, err
		}
		return []models.Faculty{*faculty}, nil
	}
	if skillID != "" {
		roster, err := s.faculty.ListBySkill(ctx, locationID, skillID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty by skill")
		}
		return roster, nil
	}
	roster, err := s.faculty.ListActive(ctx, locationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return roster, nil
}

func (s *AvailabilityService) loadWindows(ctx context.Context, facultyIDs []string) (map[string]models.WeekWindows, error) {
	slots, err := s.availability.ListByFaculties(ctx, facultyIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	windows := make(map[string]models.WeekWindows)
	for _, slot := range slots {
		day, err := timeslot.ParseWeekday(slot.DayOfWeek)
		if err != nil {
			s.logger.Warn("skipping availability row with unknown weekday", zap.String("slot_id", slot.ID), zap.String("day", slot.DayOfWeek))
			continue
		}
		rng, err := slot.Window()
		if err != nil {
			s.logger.Warn("skipping availability row with invalid times", zap.String("slot_id", slot.ID), zap.Error(err))
			continue
		}
		week := windows[slot.FacultyID]
		if week == nil {
			week = models.WeekWindows{}
			windows[slot.FacultyID] = week
		}
		week[day] = rng
	}
	return windows, nil
}

// commitment is a batch's slot geometry pre-parsed for the date sweep.
type commitment struct {
	batchID string
	days    timeslot.DaySet
	dates   timeslot.DateRange
	time    timeslot.Range
}

func indexBatchCommitments(batches []models.Batch) (map[string][]commitment, []string, error) {
	commitments := make(map[string][]commitment)
	batchIDs := make([]string, 0, len(batches))
	for _, b := range batches {
		days, err := b.Days()
		if err != nil {
			return nil, nil, fmt.Errorf("batch %s: %w", b.ID, err)
		}
		rng, err := b.TimeRange()
		if err != nil {
			return nil, nil, fmt.Errorf("batch %s: %w", b.ID, err)
		}
		commitments[b.FacultyID] = append(commitments[b.FacultyID], commitment{
			batchID: b.ID,
			days:    days,
			dates:   b.Dates(),
			time:    rng,
		})
		batchIDs = append(batchIDs, b.ID)
	}
	return commitments, batchIDs, nil
}

func indexCoverDuties(subs []models.SubstitutionDetail) (map[string][]commitment, error) {
	duties := make(map[string][]commitment)
	for _, sub := range subs {
		days, err := sub.BatchDaySet()
		if err != nil {
			return nil, fmt.Errorf("substitution %s: %w", sub.ID, err)
		}
		rng, err := sub.BatchTimeRange()
		if err != nil {
			return nil, fmt.Errorf("substitution %s: %w", sub.ID, err)
		}
		duties[sub.SubstituteFacultyID] = append(duties[sub.SubstituteFacultyID], commitment{
			batchID: sub.BatchID,
			days:    days,
			dates:   sub.Dates(),
			time:    rng,
		})
	}
	return duties, nil
}

// reassignedAway reports whether a substitution hands the batch to someone
// else on the given date, freeing the permanent assignee.
func reassignedAway(subs []models.Substitution, facultyID string, date time.Time) bool {
	for _, sub := range subs {
		if sub.SubstituteFacultyID != facultyID && sub.Dates().Covers(date) {
			return true
		}
	}
	return false
}
