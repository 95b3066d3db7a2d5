package handler

import (
	"net/http"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/middleware"
	"github.com/JxWayne890/complyflow-financial/internal/service"
	"github.com/JxWayne890/complyflow-financial/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler streams generation progress and status changes of one request
type WSHandler struct {
	hub            *ws.Hub
	content        service.ContentService
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, content service.ContentService, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		content:        content,
		allowedOrigins: parseOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin allows same-origin requests, and any origin when none is configured
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed || allowed == "*" {
			return true
		}
	}
	return false
}

// Connect handles GET /ws/content/:id
func (h *WSHandler) Connect(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor.ID == "" {
		common.FailWith(c, common.ErrUnauthorized)
		return
	}
	id, ok := requestID(c)
	if !ok {
		return
	}
	if _, err := h.content.Get(c.Request.Context(), actor, id); err != nil {
		common.FailWith(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, id, actor.ID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
