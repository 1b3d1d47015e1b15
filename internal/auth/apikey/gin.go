package apikey

import (
	"github.com/gin-gonic/gin"
)

// GinMiddleware enforces cp inline in a gin handler chain. Authorized
// requests continue; others are aborted with the outcome's status and body.
func GinMiddleware(cp Checkpoint, resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := resolver.Resolve(c.Request, cp)
		outcome := cp.Decide(rc)

		if outcome == OutcomeAuthorized {
			c.Set(ContextKeyClient, cp.Identity(rc))
			c.Set(ContextKeyFingerprint, cp.Fingerprint(rc))
			c.Next()
			return
		}

		c.Abort()
		Emit(c.Writer, outcome)
	}
}

// Gin context keys set for authorized requests.
const (
	ContextKeyClient      = "apikey.client"
	ContextKeyFingerprint = "apikey.fingerprint"
)
