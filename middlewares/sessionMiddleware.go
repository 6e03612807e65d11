package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmindustry/forge_backend/utils"
)

// SessionMiddleware trusts the gateway-authenticated X-User-Id header and
// attaches it to the request context. Requests without it are rejected for
// everything except the paths the gateway probes directly.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Pub/Sub push carries identity in the payload, not the header.
		if c.Request.URL.Path == "/pubsub" {
			c.Next()
			return
		}

		userId := c.Request.Header.Get("X-User-Id")
		if userId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), userId)
		ctx = utils.SetActorInContext(ctx, "api")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
