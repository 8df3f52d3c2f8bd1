package handler

import (
	"context"
	"net/http"

	"portfolio-service/internal/auth"
	"portfolio-service/internal/auth/provider"
	"portfolio-service/internal/auth/resolver"
	"portfolio-service/internal/logger"
	"portfolio-service/internal/session"
	"portfolio-service/internal/web"

	"github.com/gin-gonic/gin"
)

// AuthService is the session store as used by the auth pages.
type AuthService interface {
	SignUp(ctx context.Context, in auth.Credentials) (*auth.User, error)
	SignIn(ctx context.Context, clientID string, in auth.Credentials) (*session.Session, error)
	StartSession(ctx context.Context, clientID string, user auth.User) (*session.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

type Handler struct {
	auth      AuthService
	providers *provider.Registry
	resolver  resolver.Resolver
	cookies   session.CookieOptions
}

func NewHandler(
	authService AuthService,
	registry *provider.Registry,
	resolver resolver.Resolver,
	cookies session.CookieOptions,
) *Handler {
	return &Handler{
		auth:      authService,
		providers: registry,
		resolver:  resolver,
		cookies:   cookies,
	}
}

// RegisterRoutes mounts the auth pages. The router must run
// authctx.Middleware so that sign-out can reach the mounted provider.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/signin", h.signInPage)
	r.POST("/signin", h.signIn)
	r.GET("/signup", h.signUpPage)
	r.POST("/signup", h.signUp)
	r.POST("/auth/signout", h.signOut)
	r.GET("/forgot-password", h.forgotPasswordPage)
	r.POST("/forgot-password", h.forgotPassword)
	r.GET("/reset-password", h.resetPasswordPage)
	r.POST("/reset-password", h.resetPassword)
	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		web.NotFound(c)
		return
	}

	flow, err := h.beginFlow(c)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "signin.html", h.signInData(""), err)
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(flow.State, flow.Challenge()))
}

func (h *Handler) callback(c *gin.Context) {
	ctx := c.Request.Context()
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		web.NotFound(c)
		return
	}

	codeVerifier, ok := h.finishFlow(c)
	if !ok {
		h.expired(c)
		return
	}

	// The provider reports an error (for example the user cancelled).
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		c.Redirect(http.StatusSeeOther, "/signin")
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oidc callback missing code and error", nil)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	identity, err := p.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		logger.Warn("oidc code exchange failed", map[string]any{
			"provider": providerName,
			"error":    err,
		})
		data := h.signInData("")
		data["Error"] = "Authentication failed."
		c.HTML(http.StatusUnauthorized, "signin.html", web.Page(c, data))
		return
	}

	user, err := h.resolver.Resolve(ctx, identity)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "signin.html", h.signInData(""), err)
		return
	}

	if !h.startSession(c, user) {
		return
	}

	logger.Info("oidc sign-in", map[string]any{
		"provider": providerName,
		"user_id":  user.ID,
		"ip":       c.ClientIP(),
	})
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// startSession binds a new session to the browser and sets its cookie.
func (h *Handler) startSession(c *gin.Context, user auth.User) bool {
	clientID, err := session.EnsureClientID(c.Writer, c.Request, h.cookies)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "signin.html", h.signInData(""), err)
		return false
	}

	sess, err := h.auth.StartSession(c.Request.Context(), clientID, user)
	if err != nil {
		web.Fail(c, http.StatusInternalServerError, "signin.html", h.signInData(""), err)
		return false
	}

	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, h.cookies)
	return true
}

func (h *Handler) expired(c *gin.Context) {
	data := h.signInData("")
	data["Error"] = "Sign-in expired. Please try again."
	c.HTML(http.StatusUnauthorized, "signin.html", web.Page(c, data))
}
