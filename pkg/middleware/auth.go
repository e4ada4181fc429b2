package middleware

import (
	"strings"

	"loyaltyhub/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	UserID   int64
	Username string
	Role     string
}

// Authenticator resolves a session token to a Principal.
type Authenticator func(token string) (*Principal, error)

// Authenticate reads the session from the "Authorization: Bearer" header or
// from cookieName and stores the Principal on the context.
func Authenticate(cookieName string, auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(cookieName)
		}
		if token == "" {
			_ = c.Error(errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		p, err := auth(token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CurrentPrincipal returns the caller stored by Authenticate, or nil.
func CurrentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
