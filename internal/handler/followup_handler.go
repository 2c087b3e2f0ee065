package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edustack/institute-api/internal/models"
	"github.com/edustack/institute-api/internal/service"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/response"
	"github.com/edustack/institute-api/pkg/timeslot"
)

// FollowUpHandler manages the collections worklist endpoints.
type FollowUpHandler struct {
	service *service.FollowUpService
}

// NewFollowUpHandler constructs handler.
func NewFollowUpHandler(svc *service.FollowUpService) *FollowUpHandler {
	return &FollowUpHandler{service: svc}
}

// List godoc
// @Summary List follow-up tasks with bucket counts
// @Tags FollowUps
// @Produce json
// @Param dateFilter query string false "today | overdue | upcoming"
// @Param searchTerm query string false "Student name search"
// @Param batchName query string false "Filter by batch"
// @Param assignedTo query string false "Filter by assigned staff"
// @Param dueAmountMin query number false "Minimum outstanding amount"
// @Param startDate query string false "Due date lower bound"
// @Param endDate query string false "Due date upper bound"
// @Success 200 {object} response.Envelope
// @Router /follow-ups [get]
func (h *FollowUpHandler) List(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	filter, err := parseFollowUpFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), locationID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreateLog godoc
// @Summary Record a collection contact for an admission
// @Tags FollowUps
// @Accept json
// @Produce json
// @Param admissionId path string true "Admission ID"
// @Param payload body service.CreateFollowUpLogRequest true "Log payload"
// @Success 201 {object} response.Envelope
// @Router /follow-ups/{admissionId}/logs [post]
func (h *FollowUpHandler) CreateLog(c *gin.Context) {
	locationID, claims, ok := requireLocation(c)
	if !ok {
		return
	}
	var req service.CreateFollowUpLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	log, err := h.service.CreateLog(c.Request.Context(), locationID, claims.UserID, c.Param("admissionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, log)
}

// Export godoc
// @Summary Download the filtered worklist as CSV or PDF
// @Tags FollowUps
// @Produce octet-stream
// @Param format query string false "csv | pdf"
// @Success 200
// @Router /follow-ups/export [get]
func (h *FollowUpHandler) Export(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	filter, err := parseFollowUpFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))
	payload, contentType, err := h.service.Export(c.Request.Context(), locationID, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=follow-ups.%s", format))
	c.Data(http.StatusOK, contentType, payload)
}

func parseFollowUpFilter(c *gin.Context) (models.FollowUpFilter, error) {
	filter := models.FollowUpFilter{
		DateFilter: models.FollowUpDateFilter(c.Query("dateFilter")),
		SearchTerm: c.Query("searchTerm"),
		BatchName:  c.Query("batchName"),
		AssignedTo: c.Query("assignedTo"),
	}

	switch filter.DateFilter {
	case "", models.FollowUpToday, models.FollowUpOverdue, models.FollowUpUpcoming:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "dateFilter must be today, overdue or upcoming")
	}

	if raw := c.Query("dueAmountMin"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "dueAmountMin must be numeric")
		}
		filter.DueAmountMin = min
	}
	if raw := c.Query("startDate"); raw != "" {
		start, err := timeslot.ParseDate(raw)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		filter.StartDate = &start
	}
	if raw := c.Query("endDate"); raw != "" {
		end, err := timeslot.ParseDate(raw)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		filter.EndDate = &end
	}

	return filter, nil
}
