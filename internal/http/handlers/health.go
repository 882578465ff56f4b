package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	cloudOCR bool
}

// NewHealthHandler reports whether cloud OCR is wired so operators can tell a
// local-only deployment from a broken one.
func NewHealthHandler(cloudOCR bool) *HealthHandler { return &HealthHandler{cloudOCR: cloudOCR} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if c.Query("verbose") == "" {
		c.String(http.StatusOK, "ok")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "cloudOcr": h.cloudOCR})
}
