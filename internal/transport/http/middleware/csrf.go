package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const requestedWithHeader = "X-Requested-With"

// RequireRequestedWith rejects state-changing browser posts that lack the
// custom header. Simple forms and cross-site navigations cannot set custom
// headers, so its presence proves the request came from our scripted client.
// Provider callback endpoints are mounted without this middleware because the
// provider redirect cannot carry the header.
func RequireRequestedWith() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(requestedWithHeader) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "missing X-Requested-With header"))
			return
		}
		c.Next()
	}
}
