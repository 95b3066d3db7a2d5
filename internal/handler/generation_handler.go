package handler

import (
	"fmt"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/middleware"
	"github.com/JxWayne890/complyflow-financial/internal/service"
	"github.com/gin-gonic/gin"
)

// GenerationHandler runs AI generation, extension and selection rewrites
type GenerationHandler struct {
	generation service.GenerationService
	rewrite    service.RewriteService
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(generation service.GenerationService, rewrite service.RewriteService) *GenerationHandler {
	return &GenerationHandler{generation: generation, rewrite: rewrite}
}

// Generate handles POST /api/v1/content/generate (new request)
// and POST /api/v1/content/:id/generate (new version of an existing one)
func (h *GenerationHandler) Generate(c *gin.Context) {
	var in service.GenerateInput
	if !bindJSON(c, &in) {
		return
	}
	in.RequestID = ""
	if c.Param("id") != "" {
		id, ok := requestID(c)
		if !ok {
			return
		}
		in.RequestID = id
	}

	res, err := h.generation.Generate(c.Request.Context(), middleware.GetActor(c), in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Created(c, res)
}

// Extend handles POST /api/v1/content/:id/extend
func (h *GenerationHandler) Extend(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var in service.ExtendInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	res, err := h.rewrite.Extend(c.Request.Context(), middleware.GetActor(c), id, in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Created(c, res)
}

// Rewrite handles POST /api/v1/content/:id/rewrite
func (h *GenerationHandler) Rewrite(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var in service.RewriteInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.rewrite.RewriteSelection(c.Request.Context(), middleware.GetActor(c), id, in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Created(c, res)
}

// SuggestTopics handles GET /api/v1/topics/suggestions
func (h *GenerationHandler) SuggestTopics(c *gin.Context) {
	var in service.TopicsInput
	if err := c.ShouldBindQuery(&in); err != nil {
		common.FailWith(c, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}
	topics, err := h.generation.SuggestTopics(c.Request.Context(), middleware.GetActor(c), in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, gin.H{"topics": topics})
}
