package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin gates the websocket handshake by Origin header. Browsers set
// it and cannot fake it; non-browser clients (no Origin) pass. Empty
// allow list means every origin is accepted, dev default.
func Origin(allowed ...string) gin.HandlerFunc {
	allow := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allow[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || len(allow) == 0 {
			c.Next()
			return
		}
		key := strings.ToLower(strings.TrimRight(origin, "/"))
		if _, ok := allow[key]; !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
