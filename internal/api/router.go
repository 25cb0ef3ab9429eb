package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"looksdehoje-backend/config"
	"looksdehoje-backend/internal/mw"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdle          = 10 * time.Minute
	loginBurst           = 5
)

// loginLimit converts attempts per minute into a token rate. Fractional rates are allowed.
func loginLimit(perMinute float64) rate.Limit {
	return rate.Limit(perMinute / 60)
}

// NewRouter builds the gin engine and wraps it in the session middleware.
// Background limiter sweeps stop when ctx is done.
func NewRouter(ctx context.Context, d Deps, cfg *config.Config) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(mw.Logger(d.Logger), mw.Recovery(d.Logger))
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	r.Use(mw.Timeout(cfg.Server.RequestTimeout))

	if base := cfg.Storage.PublicBaseURL; strings.HasPrefix(base, "/") {
		r.Static(base, cfg.Storage.Root)
	}

	// Cache: storefront responses until the next admin write or the TTL.
	cacheStore := cache.New(cfg.Server.CacheTTL, 2*cfg.Server.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.Server.CacheTTL)
	handler := NewHandler(d, cacheStore)

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	loginLimiter := mw.NewIPRateLimiter(loginLimit(cfg.Server.LoginRatePerMin), loginBurst)
	go limiter.SweepEvery(ctx, limiterSweepInterval, limiterIdle)
	go loginLimiter.SweepEvery(ctx, limiterSweepInterval, limiterIdle)

	api := r.Group("/api")
	api.Use(limiter.Middleware())
	{
		api.GET("/pieces", caching, handler.ListPieces)
		api.GET("/pieces/:id", caching, handler.GetPiece)
		api.GET("/categories", caching, handler.ListCategories)
		api.GET("/hero", caching, handler.GetHero)
		api.GET("/store", caching, handler.GetStore)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		api.POST("/auth/login", loginLimiter.Middleware(), handler.Login)
		api.POST("/auth/logout", handler.Logout)
		api.GET("/auth/session", handler.Session)
	}

	admin := api.Group("/admin")
	admin.Use(d.Gate.RequireAdmin())
	{
		admin.GET("/stats", handler.Stats)

		admin.GET("/pieces", handler.ListPieces)
		admin.GET("/pieces/:id", handler.GetPiece)
		admin.POST("/pieces", handler.CreatePiece)
		admin.PUT("/pieces/:id", handler.UpdatePiece)
		admin.DELETE("/pieces/:id", handler.DeletePiece)
		admin.POST("/pieces/:id/toggle-status", handler.TogglePieceStatus)
		admin.DELETE("/pieces/:id/images/:index", handler.RemovePieceImage)
		admin.POST("/pieces/:id/images/reorder", handler.ReorderPieceImages)

		admin.GET("/categories", handler.ListCategories)
		admin.GET("/categories/:id", handler.GetCategory)
		admin.POST("/categories", handler.CreateCategory)
		admin.PUT("/categories/:id", handler.RenameCategory)
		admin.DELETE("/categories/:id", handler.DeleteCategory)

		admin.GET("/hero", handler.GetHero)
		admin.PUT("/hero", handler.SaveHero)
		admin.GET("/hero/new-slide", handler.NewHeroSlide)
		admin.POST("/hero/images", handler.UploadHeroImage)

		admin.GET("/settings", handler.GetSettings)
		admin.PUT("/settings", handler.UpdateSettings)
		admin.PUT("/settings/password", handler.ChangePassword)

		admin.POST("/framing/preview", handler.PreviewFraming)
	}

	return d.Gate.LoadAndSave(r)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowCredentials = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
