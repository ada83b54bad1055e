package api

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/apiresponses"
)

// RequireAuth returns middleware that enforces a static bearer token on
// privileged endpoints. With an empty configured token the check is
// disabled; the deploy gate then relies on leadership alone, which matches
// resolver deployments inside a trusted network.
func RequireAuth(log *zap.SugaredLogger, token string) gin.HandlerFunc {
	if token == "" {
		log.Warn("No auth token configured, privileged endpoints are unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			apiresponses.RespondUnauthorized(c)
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			log.Warnw("Rejected request with invalid auth token", "ip", c.ClientIP(), "path", c.FullPath())
			apiresponses.RespondUnauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
