// Package server exposes the visitor counter over HTTP.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter routes any method on counterPath, and on "/", to the counter.
func NewRouter(h *Handler, counterPath string, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(logger))
	router.Use(Metrics())

	router.GET("/healthz", healthz)
	router.GET("/metrics", metricsHandler())

	router.Any(counterPath, h.VisitorCounter)
	if counterPath != "/" {
		router.Any("/", h.VisitorCounter)
	}
	return router
}
