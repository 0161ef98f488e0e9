package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/attendance"
)

// GetAttendanceSheet handles GET /api/attendance-sheet?q=.
func (h *Handler) GetAttendanceSheet(c *gin.Context) {
	sheet, err := h.upstream(c).AttendanceSheet(c.Request.Context())
	if err != nil {
		h.upstreamFailed(c, "fetch attendance sheet", err)
		return
	}
	c.JSON(http.StatusOK, attendance.BuildSheet(*sheet, c.Query("q")))
}

type scanRequest struct {
	Data string `json:"data" binding:"required"`
}

// ScanAttendance handles POST /api/attendance/scan. Admins only.
func (h *Handler) ScanAttendance(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data is required"})
		return
	}

	res, err := h.upstream(c).LogAttendance(c.Request.Context(), req.Data)
	if errors.Is(err, amsclient.ErrInvalidScan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid QR code."})
		return
	}
	if err != nil {
		h.upstreamFailed(c, "log attendance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message()})
}

type attendeeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Time string `json:"time"`
}

// GetTodayAttendance handles GET /api/attendance/today.
func (h *Handler) GetTodayAttendance(c *gin.Context) {
	attendees, err := h.upstream(c).TodayAttendees(c.Request.Context())
	if err != nil {
		h.upstreamFailed(c, "fetch today's attendees", err)
		return
	}

	out := make([]attendeeResponse, len(attendees))
	for i, a := range attendees {
		out[i] = attendeeResponse{ID: a.ID, Name: a.Member.FullName(), Time: a.TimeLabel()}
	}
	c.JSON(http.StatusOK, out)
}
