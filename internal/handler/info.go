package handler

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/orgoj/logchannel/internal/logger"
	"github.com/orgoj/logchannel/internal/version"
)

// VersionHandler reports build information.
func VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "logchannel",
		"version":     version.Version,
		"build_date":  version.BuildDate,
		"commit_hash": version.CommitHash,
		"go_version":  runtime.Version(),
	})
}

// NewChannelsHandler lists the configured destinations and whether each
// currently holds a connection.
func NewChannelsHandler(mgr *logger.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"channels": mgr.Channels()})
	}
}
