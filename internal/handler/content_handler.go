package handler

import (
	"fmt"
	"net/http"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/middleware"
	"github.com/JxWayne890/complyflow-financial/internal/service"
	"github.com/JxWayne890/complyflow-financial/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// ContentHandler serves content requests and their version history
type ContentHandler struct {
	content  service.ContentService
	versions service.VersionService
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(content service.ContentService, versions service.VersionService) *ContentHandler {
	return &ContentHandler{content: content, versions: versions}
}

// requestID reads and canonicalizes the :id path parameter
func requestID(c *gin.Context) (string, bool) {
	id, err := ginutil.ParamUUID(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid content id", err)
		return "", false
	}
	return id, true
}

// bindJSON decodes the body, reporting malformed input as 400
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		common.FailWith(c, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return false
	}
	return true
}

// Create handles POST /api/v1/content
func (h *ContentHandler) Create(c *gin.Context) {
	var in service.CreateContentInput
	if !bindJSON(c, &in) {
		return
	}
	req, err := h.content.Create(c.Request.Context(), middleware.GetActor(c), in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Created(c, req)
}

// List handles GET /api/v1/content?tab=&status=&advisor_id=&client_id=&page=&limit=
func (h *ContentHandler) List(c *gin.Context) {
	page, limit := ginutil.Pagination(c)
	tab := domain.LibraryTab(c.DefaultQuery("tab", string(domain.TabAll)))
	if tab.Statuses() == nil && tab != domain.TabAll {
		common.ErrorResponse(c, http.StatusBadRequest, "unknown tab", nil)
		return
	}

	f := domain.ListFilter{
		AdvisorID: c.Query("advisor_id"),
		ClientID:  c.Query("client_id"),
		Tab:       tab,
		Status:    domain.ContentStatus(c.Query("status")),
		Page:      page,
		Limit:     limit,
	}
	items, total, err := h.content.List(c.Request.Context(), middleware.GetActor(c), f)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.SuccessWithMeta(c, items, common.NewMeta(page, limit, total))
}

// Counts handles GET /api/v1/content/counts
func (h *ContentHandler) Counts(c *gin.Context) {
	counts, err := h.content.StatusCounts(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, counts)
}

// Get handles GET /api/v1/content/:id
func (h *ContentHandler) Get(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	detail, err := h.content.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, detail)
}

// Update handles PATCH /api/v1/content/:id
func (h *ContentHandler) Update(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var in service.UpdateContentInput
	if !bindJSON(c, &in) {
		return
	}
	req, err := h.content.UpdateFields(c.Request.Context(), middleware.GetActor(c), id, in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, req)
}

// SaveDraft handles POST /api/v1/content/:id/draft
// Responds 201 when a new version was written and 200 when the draft matched the current one.
func (h *ContentHandler) SaveDraft(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var in service.DraftInput
	if !bindJSON(c, &in) {
		return
	}
	v, created, err := h.content.SaveDraft(c.Request.Context(), middleware.GetActor(c), id, in)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	if created {
		common.Created(c, v)
		return
	}
	common.Success(c, v)
}

// Reviews handles GET /api/v1/content/:id/reviews
func (h *ContentHandler) Reviews(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	reviews, err := h.content.ListReviews(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, reviews)
}

// ReviewQueue handles GET /api/v1/reviews/queue
func (h *ContentHandler) ReviewQueue(c *gin.Context) {
	items, err := h.content.ReviewQueue(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, items)
}

// readable resolves :id and confirms the caller may see the request
func (h *ContentHandler) readable(c *gin.Context) (string, bool) {
	id, ok := requestID(c)
	if !ok {
		return "", false
	}
	if _, err := h.content.Get(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		common.FailWith(c, err)
		return "", false
	}
	return id, true
}

// Versions handles GET /api/v1/content/:id/versions
func (h *ContentHandler) Versions(c *gin.Context) {
	id, ok := h.readable(c)
	if !ok {
		return
	}
	versions, err := h.versions.ListVersions(c.Request.Context(), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, versions)
}

// CurrentVersion handles GET /api/v1/content/:id/versions/current
func (h *ContentHandler) CurrentVersion(c *gin.Context) {
	id, ok := h.readable(c)
	if !ok {
		return
	}
	v, err := h.versions.GetCurrentVersion(c.Request.Context(), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	if v == nil {
		common.FailWith(c, common.ErrVersionNotFound)
		return
	}
	common.Success(c, v)
}

// LatestVersion handles GET /api/v1/content/:id/versions/latest
func (h *ContentHandler) LatestVersion(c *gin.Context) {
	id, ok := h.readable(c)
	if !ok {
		return
	}
	v, err := h.versions.GetLatestVersion(c.Request.Context(), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	if v == nil {
		common.FailWith(c, common.ErrVersionNotFound)
		return
	}
	common.Success(c, v)
}

// Consistency handles GET /api/v1/content/:id/consistency
func (h *ContentHandler) Consistency(c *gin.Context) {
	id, ok := h.readable(c)
	if !ok {
		return
	}
	report, err := h.versions.CheckConsistency(c.Request.Context(), id)
	if err != nil {
		common.FailWith(c, err)
		return
	}
	common.Success(c, report)
}
