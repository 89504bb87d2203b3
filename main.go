package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"inkwell/auth"
	"inkwell/backoffice"
	"inkwell/blog"
	"inkwell/cache"
	"inkwell/common"
	"inkwell/database"
	"inkwell/email"
	"inkwell/metrics"
	"inkwell/site"
)

func main() {
	cfg := common.LoadConfig()
	common.SetupLogger(cfg)
	logger := common.Logger("main")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := common.ConnectDb(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token issuer")
	}
	guard := auth.NewGuard(db, tokens)
	m := metrics.New()

	renderCache := cache.NewRenderCache(cfg.CacheDir)
	if err := renderCache.ClearOld(7 * 24 * time.Hour); err != nil {
		logger.Warn().Err(err).Msg("failed to prune render cache")
	}

	authModule := auth.NewAuthModule(db, tokens, email.NewEmailService(cfg)).
		WithMetrics(m).
		WithOTPTTL(cfg.OTPTTL)

	redisClient, err := common.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, OTP requests are not rate limited")
	}
	if redisClient != nil {
		defer redisClient.Close()
		authModule.WithOTPLimiter(auth.NewRedisOTPLimiter(redisClient, cfg.OTPMaxPerWindow, cfg.OTPWindow))
	}

	if cfg.GoogleEnabled() {
		provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
		authModule.WithIdentityProvider(provider, cfg.ClientURL)
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(common.RequestLogger(), gin.Recovery(), m.Middleware())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   false,
	})
	router.Use(sessions.Sessions("inkwell-session", store))

	authModule.RegisterRoutes(router, guard)
	blog.NewBlogModule(db, guard, renderCache, m).RegisterRoutes(router)
	backoffice.NewBackofficeModule(db, guard, renderCache, m).RegisterRoutes(router)
	site.NewSiteModule(db, cfg.Domain).RegisterRoutes(router)
	router.GET("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	if err := common.CloseDb(db); err != nil {
		logger.Error().Err(err).Msg("failed to close database")
	}
}
