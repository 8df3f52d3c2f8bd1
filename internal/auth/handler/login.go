package handler

import (
	"net/http"

	"portfolio-service/internal/apperr"
	"portfolio-service/internal/auth"
	"portfolio-service/internal/authctx"
	"portfolio-service/internal/logger"
	"portfolio-service/internal/session"
	"portfolio-service/internal/web"

	"github.com/gin-gonic/gin"
)

func (h *Handler) signInData(email string) gin.H {
	return gin.H{
		"Title":     "Sign in",
		"Email":     email,
		"Providers": h.providers.Names(),
	}
}

func (h *Handler) signInPage(c *gin.Context) {
	if p, err := authctx.FromContext(c.Request.Context()); err == nil && p.Value().Authenticated() {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}

	data := h.signInData("")
	switch {
	case c.Query("registered") != "":
		data["Notice"] = "Account created. You can sign in now."
	case c.Query("reset") != "":
		data["Notice"] = "Password updated. Sign in with your new password."
	}
	c.HTML(http.StatusOK, "signin.html", web.Page(c, data))
}

func (h *Handler) signIn(c *gin.Context) {
	var in auth.Credentials
	_ = c.ShouldBind(&in)

	clientID, err := session.EnsureClientID(c.Writer, c.Request, h.cookies)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "signin.html", h.signInData(in.Email), err)
		return
	}

	sess, err := h.auth.SignIn(c.Request.Context(), clientID, in)
	if err != nil {
		data := h.signInData(in.Email)
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			data["Error"] = "Enter your email and password."
			c.HTML(http.StatusBadRequest, "signin.html", web.Page(c, data))
		case apperr.KindUnauthorized:
			data["Error"] = "Invalid email or password."
			c.HTML(http.StatusUnauthorized, "signin.html", web.Page(c, data))
		default:
			web.Fail(c, http.StatusInternalServerError, "signin.html", data, err)
		}
		return
	}

	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, h.cookies)

	logger.Info("password sign-in", map[string]any{
		"user_id": sess.UserID,
		"ip":      c.ClientIP(),
	})
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// signOut ends the cookie's session and the client's session, then lets
// the mounted auth context navigate to the sign-in page.
func (h *Handler) signOut(c *gin.Context) {
	ctx := c.Request.Context()

	if sid := session.SessionIDFromRequest(c.Request); sid != "" {
		if err := h.auth.RevokeSession(ctx, sid); err != nil {
			logger.Warn("failed to revoke session", map[string]any{
				"error": err,
			})
		}
	}
	session.ClearCookie(c.Writer, h.cookies)

	authctx.Use(ctx).SignOut(ctx)
}
