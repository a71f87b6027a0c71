package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/filter-reader/internal/service/extraction"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
}

func NewHandlers(service extraction.Service, logger logger.Logger) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(service, logger),
	}
}

// HealthCheck reports that the server is up.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
