package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetVAPIDPublicKey handles GET /api/vapid_public_key. Clients pass the key to
// pushManager.subscribe and then register the result with PUT
// /api/push/subscription so the poller can push new AMS notifications.
// Without VAPID keys the gateway does not push at all and answers 503.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	opts := h.webpush
	if opts == nil || opts.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "web push is disabled on this gateway"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": opts.VAPIDPublicKey})
}
