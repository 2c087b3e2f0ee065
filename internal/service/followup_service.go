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
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/export"
	"github.com/edustack/institute-api/pkg/timeslot"
)

type followUpRepository interface {
	Counts(ctx context.Context, locationID string, today time.Time) (models.FollowUpCounts, error)
	List(ctx context.Context, locationID string, filter models.FollowUpFilter, today time.Time) ([]models.FollowUpTask, error)
	AdmissionLocation(ctx context.Context, admissionID string) (string, error)
	CreateLog(ctx context.Context, log *models.FollowUpLog) error
}

// FollowUpListResult bundles the filtered worklist with the bucket counts.
type FollowUpListResult struct {
	Tasks  []models.FollowUpTask `json:"tasks"`
	Counts models.FollowUpCounts `json:"counts"`
}

// CreateFollowUpLogRequest records a collection contact for an admission.
type CreateFollowUpLogRequest struct {
	Note            string  `json:"note" validate:"required"`
	NextTaskDueDate *string `json:"next_task_due_date"`
}

// ExportFormat selects the worklist download encoding.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// FollowUpServiceConfig tunes worklist exports.
type FollowUpServiceConfig struct {
	ExportEnabled bool
	MaxExportRows int
}

// FollowUpService buckets outstanding-balance admissions into collection
// tasks relative to today and records contact logs.
type FollowUpService struct {
	repo      followUpRepository
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	config    FollowUpServiceConfig
	now       func() time.Time
}

// NewFollowUpService instantiates FollowUpService.
func NewFollowUpService(repo followUpRepository, validate *validator.Validate, logger *zap.Logger, config FollowUpServiceConfig) *FollowUpService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxExportRows <= 0 {
		config.MaxExportRows = 2000
	}
	return &FollowUpService{
		repo:      repo,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// List returns the three bucket counts plus the filtered task list.
func (s *FollowUpService) List(ctx context.Context, locationID string, filter models.FollowUpFilter) (*FollowUpListResult, error) {
	today := s.today()

	counts, err := s.repo.Counts(ctx, locationID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count follow-ups")
	}

	tasks, err := s.repo.List(ctx, locationID, filter, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list follow-ups")
	}
	if tasks == nil {
		tasks = []models.FollowUpTask{}
	}

	return &FollowUpListResult{Tasks: tasks, Counts: counts}, nil
}

// CreateLog records a contact against an admission. Logging against another
// branch's admission is forbidden.
func (s *FollowUpService) CreateLog(ctx context.Context, locationID, userID, admissionID string, req CreateFollowUpLogRequest) (*models.FollowUpLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid follow-up log payload")
	}

	admissionLocation, err := s.repo.AdmissionLocation(ctx, admissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve admission")
	}
	if admissionLocation != locationID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admission belongs to another branch")
	}

	log := &models.FollowUpLog{
		AdmissionID: admissionID,
		LocationID:  locationID,
		Note:        req.Note,
		CreatedBy:   userID,
	}
	if req.NextTaskDueDate != nil {
		due, err := timeslot.ParseDate(*req.NextTaskDueDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		log.NextTaskDueDate = &due
	}

	if err := s.repo.CreateLog(ctx, log); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create follow-up log")
	}
	return log, nil
}

// Export renders the filtered worklist as a CSV or PDF attachment.
func (s *FollowUpService) Export(ctx context.Context, locationID string, filter models.FollowUpFilter, format ExportFormat) ([]byte, string, error) {
	if !s.config.ExportEnabled {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export is disabled")
	}

	tasks, err := s.repo.List(ctx, locationID, filter, s.today())
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list follow-ups")
	}
	if len(tasks) > s.config.MaxExportRows {
		tasks = tasks[:s.config.MaxExportRows]
	}

	dataset := export.Dataset{
		Headers: []string{"Admission", "Student", "Batch", "Assigned To", "Due Date", "Due Amount"},
	}
	for _, task := range tasks {
		assigned := ""
		if task.AssignedTo != nil {
			assigned = *task.AssignedTo
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Admission":   task.AdmissionID,
			"Student":     task.StudentName,
			"Batch":       task.BatchName,
			"Assigned To": assigned,
			"Due Date":    task.NextTaskDueDate.Format("2006-01-02"),
			"Due Amount":  fmt.Sprintf("%.2f", task.TotalDueAmount),
		})
	}

	switch format {
	case ExportPDF:
		payload, err := s.pdf.Render(dataset, "Follow-up worklist")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case ExportCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// today truncates the clock to a UTC calendar date; all bucket comparisons
// run on dates, never timestamps.
func (s *FollowUpService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
