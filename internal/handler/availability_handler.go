package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edustack/institute-api/internal/service"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/response"
)

// AvailabilityHandler manages weekly availability and free-slot endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// GetWeek godoc
// @Summary Get a faculty's weekly availability
// @Tags Availability
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /availability/{facultyId} [get]
func (h *AvailabilityHandler) GetWeek(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	slots, err := h.service.GetWeek(c.Request.Context(), locationID, c.Param("facultyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// ReplaceWeek godoc
// @Summary Replace a faculty's weekly availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Param payload body service.ReplaceWeekRequest true "Weekly windows"
// @Success 200 {object} response.Envelope
// @Router /availability/{facultyId} [put]
func (h *AvailabilityHandler) ReplaceWeek(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	var req service.ReplaceWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slots, err := h.service.ReplaceWeek(c.Request.Context(), locationID, c.Param("facultyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// FreeSlots godoc
// @Summary Compute free time slots per faculty and date
// @Tags Availability
// @Produce json
// @Param startDate query string true "Range start (YYYY-MM-DD)"
// @Param endDate query string true "Range end (YYYY-MM-DD)"
// @Param selectedFaculty query string false "Restrict to one faculty"
// @Param selectedSkill query string false "Restrict to faculty holding a skill"
// @Success 200 {object} response.Envelope
// @Router /free-slots [get]
func (h *AvailabilityHandler) FreeSlots(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	req := service.FreeSlotsRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		FacultyID: c.Query("selectedFaculty"),
		SkillID:   c.Query("selectedSkill"),
	}
	slots, err := h.service.FreeSlots(c.Request.Context(), locationID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
