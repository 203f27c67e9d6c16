package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudechat/internal/auth"
	"fraudechat/internal/models"
	"fraudechat/internal/persona"
	"fraudechat/internal/service/assistant"
	"fraudechat/internal/service/chat"
)

const defaultMessageLimit = 50

type messageRequest struct {
	Content   string `json:"content"`
	SessionID int64  `json:"session_id"`
	Mode      string `json:"mode"`
}

func (h *Handler) postMessage(c *gin.Context) {
	claims, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required", "fields": gin.H{"content": "content is required"}})
		return
	}
	if req.SessionID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id cannot be negative"})
		return
	}
	ctx := c.Request.Context()

	session, ok := h.resolveSession(c, claims, req.SessionID)
	if !ok {
		return
	}
	mode := persona.ParseMode(req.Mode)

	if _, err := h.assistant.AddMessage(ctx, session.ID, models.RoleUser, content, mode); err != nil {
		h.internalError(c, "store user message", err)
		return
	}
	history, err := h.assistant.ListMessages(ctx, session.ID)
	if err != nil {
		h.internalError(c, "load history", err)
		return
	}

	reply, err := h.chat.Reply(ctx, history, mode)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": reply.Text})
			return
		}
		h.internalError(c, "reply", err)
		return
	}
	if _, err := h.assistant.AddMessage(ctx, session.ID, models.RoleAssistant, reply.Text, reply.Mode); err != nil {
		h.internalError(c, "store reply", err)
		return
	}

	userMessages, err := h.assistant.CountUserMessages(ctx, session.ID)
	if err != nil {
		h.internalError(c, "count messages", err)
		return
	}
	if userMessages == 1 {
		title := h.titles.Generate(ctx, content)
		if err := h.assistant.UpdateSessionTitle(ctx, session.ID, title); err != nil {
			h.internalError(c, "update title", err)
			return
		}
		session.Title = title
	}

	messages, err := h.assistant.ListMessages(ctx, session.ID)
	if err != nil {
		h.internalError(c, "load history", err)
		return
	}
	h.log.Debug("reply sent",
		zap.Int64("session_id", session.ID),
		zap.String("mode", reply.Mode.String()),
		zap.String("outcome", string(reply.Outcome)),
	)
	c.JSON(http.StatusCreated, gin.H{
		"chatbot_reply": reply.Text,
		"mode":          reply.Mode,
		"session_id":    session.ID,
		"session_title": session.Title,
		"messages":      messages,
	})
}

// resolveSession picks the requested session, or the caller's latest active
// one, creating a session when the caller has none.
func (h *Handler) resolveSession(c *gin.Context, claims *auth.Claims, sessionID int64) (*models.Session, bool) {
	if sessionID > 0 {
		session, ok := h.loadOwnedSession(c, claims, sessionID)
		if !ok {
			return nil, false
		}
		if !session.IsActive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session is inactive"})
			return nil, false
		}
		return session, true
	}
	ctx := c.Request.Context()
	session, err := h.assistant.LatestActiveSession(ctx, claims.UserID)
	if err == nil {
		return session, true
	}
	if !errors.Is(err, assistant.ErrSessionNotFound) {
		h.internalError(c, "latest session", err)
		return nil, false
	}
	session, err = h.assistant.CreateSession(ctx, claims.UserID, "")
	if err != nil {
		h.internalError(c, "create session", err)
		return nil, false
	}
	return session, true
}

func (h *Handler) getMessages(c *gin.Context) {
	claims, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	page, ok := pageFromQuery(c, defaultMessageLimit)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var session *models.Session
	if raw := c.Query("session_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		if session, ok = h.loadOwnedSession(c, claims, id); !ok {
			return
		}
	} else {
		latest, err := h.assistant.LatestActiveSession(ctx, claims.UserID)
		if err != nil && !errors.Is(err, assistant.ErrSessionNotFound) {
			h.internalError(c, "latest session", err)
			return
		}
		session = latest
	}

	body := pageBody(page, 0)
	if session == nil {
		body["session_id"] = nil
		body["messages"] = []*models.Message{}
		c.JSON(http.StatusOK, body)
		return
	}
	messages, total, err := h.assistant.ListMessagesPage(ctx, session.ID, page)
	if err != nil {
		h.internalError(c, "list messages", err)
		return
	}
	body = pageBody(page, total)
	body["session_id"] = session.ID
	body["session_title"] = session.Title
	body["messages"] = messages
	c.JSON(http.StatusOK, body)
}

func (h *Handler) createSession(c *gin.Context) {
	claims, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := h.assistant.CreateSession(c.Request.Context(), claims.UserID, req.Title)
	if err != nil {
		h.internalError(c, "create session", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"title":      session.Title,
		"session":    session,
	})
}

func (h *Handler) listSessions(c *gin.Context) {
	claims, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var (
		sessions []*models.Session
		err      error
	)
	if claims.IsAdmin {
		sessions, err = h.assistant.ListAllSessions(c.Request.Context())
	} else {
		sessions, err = h.assistant.ListActiveSessions(c.Request.Context(), claims.UserID)
	}
	if err != nil {
		h.internalError(c, "list sessions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) deleteSession(c *gin.Context) {
	claims, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	if _, ok := h.loadOwnedSession(c, claims, sessionID); !ok {
		return
	}
	if err := h.assistant.DeactivateSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, assistant.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.internalError(c, "deactivate session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted", "session_id": sessionID})
}
