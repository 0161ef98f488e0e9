package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rotary-ams-gateway/internal/notification"
)

func (h *Handler) feed(c *gin.Context) *notification.Feed {
	return notification.NewFeed(h.upstream(c), h.reporter)
}

// GetNotifications handles GET /api/notifications. Everything is marked as
// seen upstream after the response is built; the returned unseen count is
// the one observed before that.
func (h *Handler) GetNotifications(c *gin.Context) {
	feed := h.feed(c)
	view, err := feed.Load(c.Request.Context())
	if err != nil {
		respondUpstreamError(c, err)
		return
	}

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		feed.Wait()
	}()

	c.JSON(http.StatusOK, view)
}

// ClearNotifications handles DELETE /api/notifications/seen?confirm=true.
func (h *Handler) ClearNotifications(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "confirmation required: repeat with confirm=true"})
		return
	}

	view, err := h.feed(c).Clear(c.Request.Context(), true)
	if err != nil {
		respondUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
