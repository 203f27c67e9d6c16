package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) adminSessions(c *gin.Context) {
	page, ok := pageFromQuery(c, defaultPageLimit)
	if !ok {
		return
	}
	sessions, total, err := h.assistant.ListSessionsPage(c.Request.Context(), page)
	if err != nil {
		h.internalError(c, "admin list sessions", err)
		return
	}
	body := pageBody(page, total)
	body["items"] = sessions
	c.JSON(http.StatusOK, body)
}

func (h *Handler) adminUsers(c *gin.Context) {
	page, ok := pageFromQuery(c, defaultPageLimit)
	if !ok {
		return
	}
	users, total, err := h.assistant.ListUsers(c.Request.Context(), page)
	if err != nil {
		h.internalError(c, "admin list users", err)
		return
	}
	body := pageBody(page, total)
	body["items"] = users
	c.JSON(http.StatusOK, body)
}
