package middleware

import (
	"net/http"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ErrorTemplate = "error.html"

// Error renders the last error attached to the context. HTML clients get the
// error page, or a redirect to the login page when unauthenticated; everyone
// else gets the BaseError JSON body.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil || c.Writer.Written() {
			return
		}

		be := errutil.From(err.Err)
		status := be.Code.HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err.Err),
			)
		}

		if PrefersHTML(c) {
			if be.Code == errutil.StatusUnauthorized {
				c.Redirect(http.StatusSeeOther, "/login")
				return
			}
			c.HTML(status, ErrorTemplate, gin.H{
				"Status":  status,
				"Code":    be.Code,
				"Message": be.Message,
				"Details": be.Details,
			})
			return
		}

		c.JSON(status, be.JSON())
	}
}
