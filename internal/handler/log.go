// internal/handler/log.go

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgoj/logchannel/internal/enricher"
	"github.com/orgoj/logchannel/internal/logger"
	"github.com/orgoj/logchannel/internal/validation"
)

// X-Log-Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// LogRequestBody defines the structure for the /log endpoint request body
type LogRequestBody struct {
	Source string                 `json:"source" binding:"required,max=128,printascii"`
	Data   map[string]interface{} `json:"data" binding:"required"`
}

// LogHandlerDependencies holds dependencies for the log handler
type LogHandlerDependencies struct {
	LoggerManager *logger.Manager
	AppLogger     *logger.AppLogger
	MaxBodySize   int // bytes, 0 means unlimited
}

// NewLogHandler creates a Gin handler function for the /log endpoint. The
// record is sent to every destination routed for its source; the outcome is
// reported in the X-Log-Status header while the status code stays 200.
func NewLogHandler(deps LogHandlerDependencies) gin.HandlerFunc {
	if deps.LoggerManager == nil {
		panic("LogHandler requires a non-nil LoggerManager")
	}
	if deps.AppLogger == nil {
		panic("LogHandler requires a non-nil AppLogger")
	}

	return func(ctx *gin.Context) {
		if deps.MaxBodySize > 0 {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, int64(deps.MaxBodySize))
		}

		var reqBody LogRequestBody
		if err := ctx.ShouldBindJSON(&reqBody); err != nil {
			deps.AppLogger.Warn("Log Handler: invalid request from IP %s: %v", ctx.ClientIP(), err)
			ctx.Header("X-Log-Status", StatusError)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid log request"})
			return
		}

		data, err := validation.SanitizeRecord(reqBody.Data, validation.DefaultLimits())
		if err != nil {
			deps.AppLogger.Warn("Log Handler: rejected record from IP %s: %v", ctx.ClientIP(), err)
			ctx.Header("X-Log-Status", StatusError)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid log request"})
			return
		}

		targets := deps.LoggerManager.LoggersFor(reqBody.Source)
		if len(targets) == 0 {
			deps.AppLogger.Debug("Log Handler: no destination routed for source '%s'", reqBody.Source)
			ctx.Header("X-Log-Status", StatusSkipped)
			ctx.Status(http.StatusOK)
			return
		}

		record := enricher.NewRecord(reqBody.Source, ctx.ClientIP(), data)

		delivered := 0
		for _, lgr := range targets {
			if err := lgr.Log(record); err != nil {
				deps.AppLogger.Error("Log Handler: failed to send record to destination '%s': %v", lgr.Name(), err)
				continue
			}
			delivered++
		}

		if delivered > 0 {
			ctx.Header("X-Log-Status", StatusSuccess)
		} else {
			ctx.Header("X-Log-Status", StatusError)
		}
		ctx.Status(http.StatusOK)
	}
}
