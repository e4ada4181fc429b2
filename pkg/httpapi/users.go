package httpapi

import (
	"net/http"

	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/services/user"

	"github.com/gin-gonic/gin"
)

func userViews(users []*user.User) []user.UserJSON {
	out := make([]user.UserJSON, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToJSON())
	}
	return out
}

func (h *handler) listUsers(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		fail(c, bindError(err))
		return
	}

	users, info, err := h.users.List(c.Request.Context(), page)
	if err != nil {
		fail(c, err)
		return
	}

	views := userViews(users)
	render(c, http.StatusOK, "users.html", gin.H{
		"Title":    "Users",
		"Users":    views,
		"PageInfo": info,
	}, listResponse[user.UserJSON]{Data: views, PageInfo: info})
}

func (h *handler) createUser(c *gin.Context) {
	var req user.CreateParams
	if err := c.ShouldBind(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	u, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	view := u.ToJSON()
	redirectOr(c, "/users/"+view.ID, http.StatusCreated, view)
}

func (h *handler) getUser(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	view := u.ToJSON()
	render(c, http.StatusOK, "user.html", gin.H{
		"Title": u.Username,
		"User":  view,
	}, view)
}
