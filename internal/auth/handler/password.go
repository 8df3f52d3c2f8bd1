package handler

import (
	"net/http"
	"strings"

	"portfolio-service/internal/apperr"
	"portfolio-service/internal/web"

	"github.com/gin-gonic/gin"
)

func (h *Handler) forgotPasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, "forgot_password.html", web.Page(c, gin.H{"Title": "Forgot password"}))
}

func (h *Handler) forgotPassword(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	data := gin.H{"Title": "Forgot password", "Email": email}

	if email == "" {
		data["Error"] = "Enter the email you signed up with."
		c.HTML(http.StatusBadRequest, "forgot_password.html", web.Page(c, data))
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), email); err != nil {
		web.Fail(c, http.StatusInternalServerError, "forgot_password.html", data, err)
		return
	}

	data["Sent"] = true
	c.HTML(http.StatusOK, "forgot_password.html", web.Page(c, data))
}

func (h *Handler) resetPasswordPage(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.Redirect(http.StatusSeeOther, "/forgot-password")
		return
	}
	c.HTML(http.StatusOK, "reset_password.html", web.Page(c, gin.H{
		"Title": "Reset password",
		"Token": token,
	}))
}

func (h *Handler) resetPassword(c *gin.Context) {
	token := c.PostForm("token")
	password := c.PostForm("password")
	data := gin.H{"Title": "Reset password", "Token": token}

	err := h.auth.ResetPassword(c.Request.Context(), token, password)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/signin?reset=1")
	case apperr.Is(err, apperr.KindValidation):
		data["Error"] = "This link is invalid or expired, or the password is too short."
		c.HTML(http.StatusBadRequest, "reset_password.html", web.Page(c, data))
	default:
		web.Fail(c, http.StatusInternalServerError, "reset_password.html", data, err)
	}
}
