package httpapi

import (
	"net/http"
	"time"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *handler) loginPage(c *gin.Context) {
	render(c, http.StatusOK, "login.html", gin.H{"Title": "Log in"}, gin.H{
		"message": "POST username and password to /login",
	})
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	session, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		// browsers stay on the form instead of bouncing through the error page
		if middleware.PrefersHTML(c) && errutil.Is(err, errutil.StatusUnauthorized) {
			render(c, http.StatusUnauthorized, "login.html", gin.H{
				"Title":    "Log in",
				"Error":    errutil.From(err).Message,
				"Username": req.Username,
			}, nil)
			return
		}
		fail(c, err)
		return
	}

	h.setSessionCookie(c, session.Token, int(time.Until(session.ExpiresAt).Seconds()))

	redirectOr(c, "/", http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       session.User.ToJSON(),
	})
}

func (h *handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)

	if middleware.PrefersHTML(c) {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.Name, value, maxAge, "/", "", h.cfg.TLS.Enable, true)
}
