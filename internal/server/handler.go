package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tckz/visitor-counter/internal/counter"
)

// Incrementer is satisfied by *counter.Service.
type Incrementer interface {
	Increment(ctx context.Context) (int64, error)
}

var _ Incrementer = (*counter.Service)(nil)

type Handler struct {
	counter Incrementer
	logger  *zap.SugaredLogger
}

func NewHandler(c Incrementer, logger *zap.SugaredLogger) *Handler {
	return &Handler{counter: c, logger: logger}
}

// VisitorCounter adds a visit. Body and query are ignored.
func (h *Handler) VisitorCounter(c *gin.Context) {
	logger := h.logger.With(zap.String("requestID", c.GetString(ctxRequestID)))
	logger.Infof("VisitorCounter function started processing request...")

	n, err := h.counter.Increment(c.Request.Context())
	if err != nil {
		kind := counter.ErrorKind(err)
		CounterErrors.WithLabelValues(kind).Inc()
		logger.With(zap.String("kind", kind)).Errorf("Error processing visitor counter: %v", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	VisitorCount.Set(float64(n))
	c.JSON(http.StatusOK, gin.H{"visitor_count": n})
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
