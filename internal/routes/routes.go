package routes

import (
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/handler"
	"github.com/JxWayne890/complyflow-financial/internal/middleware"
	"github.com/JxWayne890/complyflow-financial/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	Content    *handler.ContentHandler
	Workflow   *handler.WorkflowHandler
	Generation *handler.GenerationHandler
	WS         *handler.WSHandler
}

// Options tunes route-level middleware
type Options struct {
	Redis                   *redis.Client
	GenerationRatePerMinute int
}

// Setup configures all API routes
func Setup(router *gin.Engine, h Handlers, jwtManager *jwt.Manager, opts Options) {
	auth := middleware.JWTAuth(jwtManager)
	generationLimit := middleware.RateLimit(opts.Redis, middleware.RateLimitConfig{
		RequestsPerMinute: opts.GenerationRatePerMinute,
		KeyPrefix:         "complyflow:ratelimit:generation:",
	})

	api := router.Group("/api/v1", auth)

	content := api.Group("/content")
	{
		content.POST("", h.Content.Create)
		content.GET("", h.Content.List)
		content.GET("/counts", h.Content.Counts)
		content.POST("/generate", generationLimit, h.Generation.Generate)

		content.GET("/:id", h.Content.Get)
		content.PATCH("/:id", h.Content.Update)
		content.POST("/:id/draft", h.Content.SaveDraft)

		// Versions
		content.GET("/:id/versions", h.Content.Versions)
		content.GET("/:id/versions/current", h.Content.CurrentVersion)
		content.GET("/:id/versions/latest", h.Content.LatestVersion)
		content.GET("/:id/consistency", h.Content.Consistency)

		// AI
		content.POST("/:id/generate", generationLimit, h.Generation.Generate)
		content.POST("/:id/extend", generationLimit, h.Generation.Extend)
		content.POST("/:id/rewrite", generationLimit, h.Generation.Rewrite)

		// Workflow
		content.GET("/:id/actions", h.Workflow.Actions)
		content.POST("/:id/submit", h.Workflow.Submit)
		content.POST("/:id/approve", h.Workflow.Approve)
		content.POST("/:id/request-changes", h.Workflow.RequestChanges)
		content.POST("/:id/reject", h.Workflow.Reject)
		content.POST("/:id/schedule", h.Workflow.Schedule)
		content.POST("/:id/publish", h.Workflow.Publish)
		content.GET("/:id/reviews", h.Content.Reviews)
	}

	api.GET("/topics/suggestions", generationLimit, h.Generation.SuggestTopics)

	reviews := api.Group("/reviews", middleware.RequireRole(domain.RoleCompliance, domain.RoleAdmin))
	reviews.GET("/queue", h.Content.ReviewQueue)

	router.GET("/ws/content/:id", auth, h.WS.Connect)
}
