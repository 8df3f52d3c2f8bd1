package app

import (
	"context"
	"net/http"
	"time"

	"portfolio-service/internal/auth"
	"portfolio-service/internal/auth/credentials"
	"portfolio-service/internal/auth/handler"
	"portfolio-service/internal/auth/provider"
	"portfolio-service/internal/auth/provider/openid"
	"portfolio-service/internal/auth/reset"
	"portfolio-service/internal/auth/resolver"
	"portfolio-service/internal/authctx"
	"portfolio-service/internal/config"
	"portfolio-service/internal/contact"
	"portfolio-service/internal/logger"
	"portfolio-service/internal/mail"
	"portfolio-service/internal/middleware"
	"portfolio-service/internal/portfolio"
	"portfolio-service/internal/session"
	"portfolio-service/internal/web"

	"github.com/gin-gonic/gin"
)

const (
	avatarPrefix    = "/avatars"
	hubReadyTimeout = 2 * time.Second
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	cookies := session.CookieOptions{Secure: cfg.CookieSecure}

	hub := session.NewHub(infra.Redis.Client)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go func() {
		if err := hub.Run(hubCtx); err != nil {
			logger.Error("session event hub stopped", map[string]any{
				"error": err,
			})
		}
	}()

	select {
	case <-hub.Ready():
	case <-time.After(hubReadyTimeout):
		logger.Warn("session event hub not subscribed yet, retrying in background", map[string]any{
			"channel": session.EventsChannel,
		})
	}

	resets, err := reset.NewIssuer(cfg.ResetTokenSecret, cfg.ResetTokenTTL, reset.NewRedisLedger(infra.Redis.Client))
	if err != nil {
		stopHub()
		_ = infra.Close()
		return nil, nil, err
	}

	authService := auth.NewService(
		credentials.NewService(infra.DB),
		session.NewRedisStore(infra.Redis.Client),
		hub,
		resets,
		mail.LogMailer{},
		auth.Options{
			SessionTTL:         cfg.SessionTTL,
			SessionAbsoluteTTL: cfg.SessionAbsoluteTTL,
			PublicBaseURL:      cfg.PublicBaseURL,
		},
	)

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		stopHub()
		_ = infra.Close()
		return nil, nil, err
	}

	authHandler := handler.NewHandler(
		authService,
		registry,
		resolver.NewDBResolver(infra.DB),
		cookies,
	)

	portfolioHandler := portfolio.NewHandler(
		portfolio.NewRepository(infra.DB),
		infra.Avatars,
		cfg.AvatarMaxBytes,
	)

	contactHandler := contact.NewHandler(mail.LogMailer{})

	authMiddleware := middleware.NewAuthMiddleware(authService, cookies)

	storeFor := func(clientID string) authctx.SessionStore {
		return authService.ForClient(clientID)
	}

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.SetHTMLTemplate(web.MustTemplates())

	router.GET("/health", health(infra))

	router.Static(avatarPrefix, cfg.AvatarDir)

	// ----------------------------
	// Public API Routes
	// ----------------------------

	contactHandler.RegisterRoutes(router)

	router.GET("/session/events", authctx.Stream(storeFor, cookies))

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString("userID"),
			"email":   c.GetString("email"),
		})
	})

	// ----------------------------
	// Pages
	// ----------------------------

	pages := router.Group("/")
	pages.Use(authctx.Middleware(storeFor, cookies))

	pages.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.html", web.Page(c, gin.H{"Title": "Portfolio Builder"}))
	})

	authHandler.RegisterRoutes(pages)
	portfolioHandler.RegisterPublic(pages)

	// The guard runs before the auth context so the context mounts on the
	// client the session belongs to.
	dashboard := router.Group("/dashboard")
	dashboard.Use(
		middleware.GinRequirePage(authMiddleware),
		authctx.Middleware(storeFor, cookies),
	)
	portfolioHandler.RegisterDashboard(dashboard)

	router.NoRoute(authctx.Middleware(storeFor, cookies), web.NotFound)

	logRoutes(router)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		stopHub()
		hub.Close()
		return infra.Close()
	}, nil
}

// setupProviders builds the social sign-in providers that are configured.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var providers []provider.OAuthProvider

	if cfg.GoogleEnabled() {
		google, err := openid.New(ctx, openid.Config{
			Name:         "google",
			Issuer:       openid.GoogleIssuer,
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, google)
	}

	if cfg.OIDCEnabled() {
		generic, err := openid.New(ctx, openid.Config{
			Name:          cfg.OIDCName,
			Issuer:        cfg.OIDCIssuer,
			ClientID:      cfg.OIDCClientID,
			ClientSecret:  cfg.OIDCClientSecret,
			RedirectURL:   cfg.OIDCRedirectURL,
			PublicAuthURL: cfg.OIDCPublicAuthURL,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, generic)
	}

	return provider.NewRegistry(providers...), nil
}

func logRoutes(router *gin.Engine) {
	for _, route := range router.Routes() {
		logger.Info("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

func health(infra *Infra) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := infra.Healthy(c.Request.Context()); err != nil {
			logger.Warn("health check failed", map[string]any{
				"error": err,
			})
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
