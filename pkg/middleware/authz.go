package middleware

import (
	"loyaltyhub/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Enforcer is satisfied by *casbin.Enforcer.
type Enforcer interface {
	Enforce(rvals ...any) (bool, error)
}

// Authorize lets the request through when the caller's role may perform act
// on obj.
func Authorize(e Enforcer, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil {
			_ = c.Error(errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		ok, err := e.Enforce(p.Role, obj, act)
		if err != nil {
			_ = c.Error(errutil.Internal("failed to evaluate policy", err))
			c.Abort()
			return
		}
		if !ok {
			_ = c.Error(errutil.Forbidden("not allowed to "+act+" "+obj, nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
