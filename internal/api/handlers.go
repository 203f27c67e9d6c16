package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fraudechat/internal/auth"
	"fraudechat/internal/logger"
	"fraudechat/internal/models"
	"fraudechat/internal/service/assistant"
	"fraudechat/internal/service/chat"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Pinger reports database liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler wires HTTP routes to the persistence gateway, the orchestrator and
// the title generator.
type Handler struct {
	assistant *assistant.Service
	auth      *auth.Service
	chat      *chat.Orchestrator
	titles    *assistant.TitleGenerator
	db        Pinger
	log       *logger.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(service *assistant.Service, authService *auth.Service, orchestrator *chat.Orchestrator, titles *assistant.TitleGenerator, db Pinger, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		assistant: service,
		auth:      authService,
		chat:      orchestrator,
		titles:    titles,
		db:        db,
		log:       log.Named("api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router. authLimit throttles
// the credential endpoints and may be nil.
func (h *Handler) RegisterRoutes(router *gin.Engine, authLimit gin.HandlerFunc) {
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/modes", h.listModes)

	credentials := router.Group("")
	if authLimit != nil {
		credentials.Use(authLimit)
	}
	credentials.POST("/register", h.registerUser)
	credentials.POST("/login", h.loginUser)

	authMW := h.auth.Middleware()
	router.POST("/logout", authMW, h.logoutUser)

	chatRoutes := router.Group("/chat", authMW)
	chatRoutes.POST("/message", h.postMessage)
	chatRoutes.GET("/message", h.getMessages)
	chatRoutes.POST("/sessions", h.createSession)
	chatRoutes.GET("/sessions", h.listSessions)
	chatRoutes.DELETE("/sessions/:id", h.deleteSession)

	adminRoutes := router.Group("/admin", authMW, auth.AdminOnly())
	adminRoutes.GET("/sessions", h.adminSessions)
	adminRoutes.GET("/users", h.adminUsers)
}

func (h *Handler) health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.log.Error("database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listModes(c *gin.Context) {
	personas := h.chat.Registry().All()
	modes := make([]gin.H, 0, len(personas))
	for _, p := range personas {
		modes = append(modes, gin.H{
			"mode":        p.Mode,
			"name":        p.Name,
			"description": p.Description,
			"style":       p.Style,
			"greeting":    p.Greeting,
		})
	}
	c.JSON(http.StatusOK, gin.H{"modes": modes, "default": modes[0]["mode"]})
}

func (h *Handler) authorizedUser(c *gin.Context) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok || claims.UserID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	return claims, true
}

// loadOwnedSession loads a session the caller may act on. Admins may act on
// any session.
func (h *Handler) loadOwnedSession(c *gin.Context, claims *auth.Claims, sessionID int64) (*models.Session, bool) {
	session, err := h.assistant.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, assistant.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return nil, false
		}
		h.internalError(c, "load session", err)
		return nil, false
	}
	if session.UserID != claims.UserID && !claims.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "session does not belong to user"})
		return nil, false
	}
	return session, true
}

func (h *Handler) internalError(c *gin.Context, what string, err error) {
	h.log.Error(what, zap.Error(err), zap.String("correlation_id", CorrelationID(c)))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func pageFromQuery(c *gin.Context, defaultLimit int) (models.PageRequest, bool) {
	page := models.PageRequest{}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return page, false
		}
		page.Page = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return page, false
		}
		page.Limit = n
	}
	return page.Normalize(defaultLimit, maxPageLimit), true
}

func pageBody(page models.PageRequest, total int) gin.H {
	return gin.H{
		"page":        page.Page,
		"limit":       page.Limit,
		"total":       total,
		"total_pages": page.TotalPages(total),
	}
}
