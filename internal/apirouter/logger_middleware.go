package apirouter

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/logging"
	"go.uber.org/zap"
)

// LoggerMiddleware logs one line per request after the handler chain runs.
// Severity follows the response status so failed requests stand out without
// a separate error log path.
func LoggerMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if err := requestError(c); err != nil {
			fields = append(fields, zap.Error(err))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Ctx(ctx).Error("request", fields...)
		case status >= 400:
			logger.Ctx(ctx).Warn("request", fields...)
		default:
			logger.Ctx(ctx).Info("request", fields...)
		}
	}
}

// requestError digs the underlying error out of the last attached
// ErrorResponse so logs carry the cause, not the masked message.
func requestError(c *gin.Context) error {
	last := c.Errors.Last()
	if last == nil {
		return nil
	}
	var response ErrorResponse
	if errors.As(last.Err, &response) && response.Err != nil {
		return response.Err
	}
	return last.Err
}
