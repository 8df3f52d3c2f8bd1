package authctx

import (
	"context"
	"net/http"

	"portfolio-service/internal/logger"
	"portfolio-service/internal/session"

	"github.com/gin-gonic/gin"
)

// GinKey is where Middleware stores the provider for templates.
const GinKey = "auth"

// StoreFor scopes the session store to one browser client.
type StoreFor func(clientID string) SessionStore

// Middleware mounts a provider for every page render and unmounts it
// once the handlers have run. Navigation becomes a 303 redirect.
func Middleware(storeFor StoreFor, cookies session.CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := session.EnsureClientID(c.Writer, c.Request, cookies)
		if err != nil {
			logger.Error("failed to issue client id", map[string]any{
				"error": err,
			})
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		p, err := Mount(c.Request.Context(), storeFor(clientID), WithNavigator(redirect(c)))
		if err != nil {
			logger.Error("failed to mount auth context", map[string]any{
				"client_id": clientID,
				"error":     err,
			})
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		defer p.Unmount()

		c.Request = c.Request.WithContext(WithProvider(c.Request.Context(), p))
		c.Set(GinKey, p)

		c.Next()
	}
}

func redirect(c *gin.Context) Navigator {
	return NavigatorFunc(func(_ context.Context, path string) {
		c.Redirect(http.StatusSeeOther, path)
		c.Abort()
	})
}
