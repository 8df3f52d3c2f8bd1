package handler

import (
	"net/http"

	"portfolio-service/internal/apperr"
	"portfolio-service/internal/auth"
	"portfolio-service/internal/web"

	"github.com/gin-gonic/gin"
)

func (h *Handler) signUpPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", web.Page(c, gin.H{"Title": "Sign up"}))
}

func (h *Handler) signUp(c *gin.Context) {
	var in auth.Credentials
	_ = c.ShouldBind(&in)

	_, err := h.auth.SignUp(c.Request.Context(), in)
	if err != nil {
		data := gin.H{"Title": "Sign up", "Email": in.Email}
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			data["Errors"] = web.FieldErrors(err)
			data["Error"] = "Check the highlighted fields."
			c.HTML(http.StatusBadRequest, "signup.html", web.Page(c, data))
		case apperr.KindConflict:
			data["Error"] = "An account with this email already exists."
			c.HTML(http.StatusConflict, "signup.html", web.Page(c, data))
		default:
			web.Fail(c, http.StatusInternalServerError, "signup.html", data, err)
		}
		return
	}

	c.Redirect(http.StatusSeeOther, "/signin?registered=1")
}
