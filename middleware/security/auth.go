package security

import (
	"net/http"
	"strings"

	errs "SupportChat/tools/errs"
	jwt "SupportChat/tools/security"

	"github.com/gin-gonic/gin"
)

// Context keys downstream handlers read after the middleware ran.
const (
	CtxAgentKey = "agentId"
	CtxTokenKey = "authorization"
)

type Options struct {
	JWT jwt.Options

	HeaderToken               string // default "authorization"
	EnableAuthorizationBearer bool   // accept "Authorization: Bearer xxx"
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:                       jwt.DefaultOptions(secret),
		HeaderToken:               CtxTokenKey,
		EnableAuthorizationBearer: true,
	}
}

// Middleware gates the staff dashboard endpoints. The WS endpoint is
// not behind it: connection identity is the transport collaborator's
// concern and the engine treats session tokens as opaque.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		panic("security middleware needs options with a secret")
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}

		agentID, err := jwt.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired.WithDetail(err.Error()))
			return
		}

		c.Set(CtxTokenKey, token)
		c.Set(CtxAgentKey, agentID)
		c.Next()
	}
}
