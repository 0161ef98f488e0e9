package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/model"
	"rotary-ams-gateway/internal/session"
)

type loginRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	ExpoToken string `json:"expo_token"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

// Login handles POST /api/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password, req.ExpoToken)
	if err != nil {
		h.reporter.Failed("login", err)
		var apiErr *amsclient.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": amsclient.UserMessage(err)})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": amsclient.UserMessage(err)})
		return
	}

	token, exp, err := h.tokens.Issue(sess.ID)
	if err != nil {
		h.reporter.Failed("issue token", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: sess.User})
}

// Logout handles POST /api/logout. The session and its push subscriptions are removed.
func (h *Handler) Logout(c *gin.Context) {
	sess := session.FromGin(c)
	ctx := c.Request.Context()

	if err := h.store.DeleteSessionSubscriptions(ctx, sess.ID); err != nil {
		h.reporter.Failed("drop push subscriptions", err)
	}
	if err := h.sessions.Logout(ctx, sess.ID); err != nil {
		h.reporter.Failed("logout", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /api/me, the home screen.
func (h *Handler) Me(c *gin.Context) {
	user := session.FromGin(c).User
	c.JSON(http.StatusOK, gin.H{"user": user, "is_admin": user.IsAdmin()})
}

const (
	defaultQRSize = 300
	minQRSize     = 64
	maxQRSize     = 1024
)

// QRCode handles GET /api/me/qrcode.png. The code encodes the member id that
// the scan screen logs attendance for.
func (h *Handler) QRCode(c *gin.Context) {
	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < minQRSize || parsed > maxQRSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 64 and 1024"})
			return
		}
		size = parsed
	}

	user := session.FromGin(c).User
	png, err := qrcode.Encode(strconv.FormatInt(user.ID, 10), qrcode.Medium, size)
	if err != nil {
		h.reporter.Failed("render qr code", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render qr code"})
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
