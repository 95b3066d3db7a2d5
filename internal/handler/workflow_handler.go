package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/middleware"
	"github.com/JxWayne890/complyflow-financial/internal/service"
	"github.com/gin-gonic/gin"
)

// WorkflowHandler exposes the review state machine
type WorkflowHandler struct {
	workflow service.WorkflowService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(workflow service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// SubmitRequest optionally carries unsaved editor content
type SubmitRequest struct {
	Draft *service.DraftInput `json:"draft,omitempty"`
}

// ReviewRequest carries reviewer notes
type ReviewRequest struct {
	Notes string `json:"notes"`
}

// ScheduleRequest carries the publication time
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// bindOptionalJSON accepts an empty body, including an empty chunked one
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		common.FailWith(c, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *WorkflowHandler) respond(c *gin.Context, res *service.TransitionResult, err error) {
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, res)
}

// Submit handles POST /api/v1/content/:id/submit
func (h *WorkflowHandler) Submit(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.workflow.Submit(c.Request.Context(), middleware.GetActor(c), id, req.Draft)
	h.respond(c, res, err)
}

func (h *WorkflowHandler) review(c *gin.Context, decision domain.ReviewDecision) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.workflow.Review(c.Request.Context(), middleware.GetActor(c), id, decision, req.Notes)
	h.respond(c, res, err)
}

// Approve handles POST /api/v1/content/:id/approve
func (h *WorkflowHandler) Approve(c *gin.Context) { h.review(c, domain.DecisionApproved) }

// RequestChanges handles POST /api/v1/content/:id/request-changes
func (h *WorkflowHandler) RequestChanges(c *gin.Context) {
	h.review(c, domain.DecisionChangesRequested)
}

// Reject handles POST /api/v1/content/:id/reject
func (h *WorkflowHandler) Reject(c *gin.Context) { h.review(c, domain.DecisionRejected) }

// Schedule handles POST /api/v1/content/:id/schedule
func (h *WorkflowHandler) Schedule(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var req ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.workflow.Schedule(c.Request.Context(), middleware.GetActor(c), id, req.ScheduledAt)
	h.respond(c, res, err)
}

// Publish handles POST /api/v1/content/:id/publish
func (h *WorkflowHandler) Publish(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	res, err := h.workflow.Publish(c.Request.Context(), middleware.GetActor(c), id)
	h.respond(c, res, err)
}

// Actions handles GET /api/v1/content/:id/actions
func (h *WorkflowHandler) Actions(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	actions, err := h.workflow.AllowedActions(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	c.JSON(http.StatusOK, common.Response{Success: true, Data: gin.H{"actions": actions}})
}
