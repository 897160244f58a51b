// Package endpoint has the operational routes every dictation server
// exposes next to the API: /health, /alive and /info.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dictation/component"
	"github.com/kbukum/dictation/version"
)

var startTime = time.Now()

func uptime() string { return time.Since(startTime).Round(time.Second).String() }

// HealthChecker is usually component.Registry.HealthAll.
type HealthChecker func(ctx context.Context) []component.Health

// Health aggregates component health. Degraded components, such as an
// unreachable speech backend, keep a 200; an unhealthy one returns 503 so
// load balancers stop routing new sessions here.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var items []component.Health
		if checker != nil {
			items = checker(c.Request.Context())
		}
		overall := component.Overall(items)
		code := http.StatusOK
		if overall == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"service":    serviceName,
			"status":     overall,
			"components": items,
			"checked_at": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Liveness never checks components.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive", "service": serviceName, "uptime": uptime()})
	}
}

// Info reports the build of the running binary.
func Info(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.Get()
		c.JSON(http.StatusOK, gin.H{
			"service":    serviceName,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"is_dirty":   v.IsDirty,
			"uptime":     uptime(),
		})
	}
}
