package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edustack/institute-api/internal/service"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/response"
)

// SubstitutionHandler manages substitution and assignment endpoints.
type SubstitutionHandler struct {
	substitutions *service.SubstitutionService
	suggestions   *service.SuggestionService
}

// NewSubstitutionHandler constructs handler.
func NewSubstitutionHandler(subs *service.SubstitutionService, suggestions *service.SuggestionService) *SubstitutionHandler {
	return &SubstitutionHandler{substitutions: subs, suggestions: suggestions}
}

// Create godoc
// @Summary Create a temporary substitution
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body service.CreateSubstitutionRequest true "Substitution payload"
// @Success 201 {object} response.Envelope
// @Router /substitutions [post]
func (h *SubstitutionHandler) Create(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	var req service.CreateSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sub, err := h.substitutions.Create(c.Request.Context(), locationID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// Update godoc
// @Summary Update a substitution
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param id path string true "Substitution ID"
// @Param payload body service.UpdateSubstitutionRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id} [put]
func (h *SubstitutionHandler) Update(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	var req service.UpdateSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sub, err := h.substitutions.Update(c.Request.Context(), locationID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Delete godoc
// @Summary Cancel a substitution
// @Tags Substitutions
// @Param id path string true "Substitution ID"
// @Success 204
// @Router /substitutions/{id} [delete]
func (h *SubstitutionHandler) Delete(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	if err := h.substitutions.Delete(c.Request.Context(), locationID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Permanently reassign a batch to a faculty
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body service.AssignFacultyRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /substitutions/assign [post]
func (h *SubstitutionHandler) Assign(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	var req service.AssignFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.substitutions.Assign(c.Request.Context(), locationID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Suggest godoc
// @Summary Suggest faculty able to take a slot
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body service.SuggestFacultyRequest true "Slot description"
// @Success 200 {object} response.Envelope
// @Router /suggest-faculty [post]
func (h *SubstitutionHandler) Suggest(c *gin.Context) {
	locationID, _, ok := requireLocation(c)
	if !ok {
		return
	}
	var req service.SuggestFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.suggestions.Suggest(c.Request.Context(), locationID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
