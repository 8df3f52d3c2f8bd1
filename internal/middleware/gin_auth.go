package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireAuth adapts the API guard to Gin.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return ginGuard(auth.RequireAuth)
}

// GinRequirePage adapts the page guard to Gin.
func GinRequirePage(auth *AuthMiddleware) gin.HandlerFunc {
	return ginGuard(auth.RequirePage)
}

func ginGuard(guard func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false

		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			if id, ok := UserIDFromContext(r.Context()); ok {
				c.Set("userID", id)
			}
			if email, ok := EmailFromContext(r.Context()); ok {
				c.Set("email", email)
			}
			c.Next()
		})

		guard(next).ServeHTTP(c.Writer, c.Request)

		// The guard answered the request itself; stop the Gin chain
		if !passed {
			c.Abort()
		}
	}
}
