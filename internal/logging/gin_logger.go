// Package logging wires logrus into the HTTP layer: request and recovery
// middleware for gin, global logger setup, and the in-memory capture
// buffer behind the request-log endpoint.
package logging

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/keenturbo/antigravity2api/internal/util"
)

const skipRequestLogKey = "logging.skip_request_log"

// GinLogrusLogger logs one structured line per request: status, latency,
// client address and the SDK family taken from the User-Agent. A request
// id is generated when the client did not send one and echoed back in
// X-Request-Id.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.Request.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()

		if c.GetBool(skipRequestLogKey) {
			return
		}

		path := c.Request.URL.Path
		if query := util.MaskSensitiveQuery(c.Request.URL.RawQuery); query != "" {
			path += "?" + query
		}

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"request_id": requestID,
			"client":     clientFamily(c.Request.UserAgent()),
		})
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			entry = entry.WithField("errors", errs)
		}

		msg := c.Request.Method + " " + path
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(msg)
		case status >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Info(msg)
		}
	}
}

// clientFamily classifies the calling SDK from its User-Agent so the
// request log can tell library traffic from ad-hoc calls.
func clientFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "openai-python") || strings.Contains(ua, "openai/python"):
		return "openai-python"
	case strings.Contains(ua, "openai-node") || strings.Contains(ua, "openai/node"):
		return "openai-node"
	case strings.Contains(ua, "python-requests") || strings.Contains(ua, "httpx") || strings.Contains(ua, "aiohttp"):
		return "python"
	case strings.Contains(ua, "curl"):
		return "curl"
	default:
		return "other"
	}
}

// GinLogrusRecovery converts handler panics into a logged 500 response
// instead of a dropped connection.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// SkipRequestLog marks the context so GinLogrusLogger stays silent for
// this request. Used for the health endpoint monitors poll continuously.
func SkipRequestLog(c *gin.Context) {
	c.Set(skipRequestLogKey, true)
}
