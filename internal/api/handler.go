package api

import (
	"errors"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/logging"
	"rotary-ams-gateway/internal/session"
	"rotary-ams-gateway/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sessions *session.Manager
	tokens   *session.Tokens
	client   *amsclient.Client
	reporter *logging.Reporter
	webpush  *webpush.Options

	background sync.WaitGroup
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, sessions *session.Manager, tokens *session.Tokens, client *amsclient.Client, reporter *logging.Reporter, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		sessions: sessions,
		tokens:   tokens,
		client:   client,
		reporter: reporter,
		webpush:  webpushOptions,
	}
}

// Wait blocks until background upstream calls started by handlers have finished.
func (h *Handler) Wait() {
	h.background.Wait()
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	if h.store != nil && !h.store.Healthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}

// upstream returns an API client acting as the signed-in user.
func (h *Handler) upstream(c *gin.Context) *amsclient.Client {
	return h.client.WithToken(session.FromGin(c).Token)
}

// upstreamFailed logs err once and answers the request.
func (h *Handler) upstreamFailed(c *gin.Context, op string, err error) {
	h.reporter.Failed(op, err)
	respondUpstreamError(c, err)
}

// respondUpstreamError maps a failed AMS API call to the gateway response.
// An expired upstream token ends the session; everything else is a 502 so the
// client keeps what it already shows.
func respondUpstreamError(c *gin.Context, err error) {
	if amsclient.IsUnauthorized(err) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}
	var apiErr *amsclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.Message != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
}
