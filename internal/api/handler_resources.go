package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetPublications handles GET /api/publications.
func (h *Handler) GetPublications(c *gin.Context) {
	pubs, err := h.upstream(c).Publications(c.Request.Context())
	if err != nil {
		h.upstreamFailed(c, "fetch publications", err)
		return
	}
	c.JSON(http.StatusOK, pubs)
}

type statementResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// GetFinancialStatements handles GET /api/financial-statements.
func (h *Handler) GetFinancialStatements(c *gin.Context) {
	links, err := h.upstream(c).FinancialStatements(c.Request.Context())
	if err != nil {
		h.upstreamFailed(c, "fetch financial statements", err)
		return
	}

	out := make([]statementResponse, len(links))
	for i, l := range links {
		out[i] = statementResponse{ID: l.ID, Title: l.Title, URL: l.URL, Icon: l.Icon()}
	}
	c.JSON(http.StatusOK, out)
}
