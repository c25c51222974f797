package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicekit/version"
)

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	*version.Info
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// Version reports the build of the running daemon, the speech modules it
// links and how long it has been up.
func Version(started time.Time) gin.HandlerFunc {
	info := version.GetVersionInfo()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, VersionResponse{
			Info:      info,
			StartedAt: started.UTC(),
			Uptime:    time.Since(started).Round(time.Second).String(),
		})
	}
}
