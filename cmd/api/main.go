package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skyjoe/noticias-resumidas/db"
	"github.com/Skyjoe/noticias-resumidas/internal/cache"
	"github.com/Skyjoe/noticias-resumidas/internal/coalesce"
	"github.com/Skyjoe/noticias-resumidas/internal/config"
	"github.com/Skyjoe/noticias-resumidas/internal/handler"
	"github.com/Skyjoe/noticias-resumidas/internal/popular"
	"github.com/Skyjoe/noticias-resumidas/internal/ratelimit"
	"github.com/Skyjoe/noticias-resumidas/internal/repository"
	"github.com/Skyjoe/noticias-resumidas/internal/service"
	"github.com/Skyjoe/noticias-resumidas/pkg/news"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx := context.Background()

	var shared cache.Shared
	if err := db.ConnectRedis(ctx, cfg.RedisURL); err == nil {
		defer db.CloseRedis()
		shared = cache.NewRedisTier(db.Redis, db.SearchCacheKeyPrefix, cfg.SharedCacheTTL)
		slog.Info("shared cache tier: redis")
	} else {
		if !errors.Is(err, db.ErrNoURL) {
			log.Fatalf("error connecting to Redis: %v", err)
		}
		shared = cache.NewMemoryTier(cfg.SharedCacheTTL)
		slog.Info("shared cache tier: in-process, REDIS_URL not set")
	}

	var repo *repository.SearchRepository
	if err := db.Connect(cfg.DatabaseURL); err == nil {
		defer db.Close()
		repo = repository.NewSearchRepository(db.DB)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("error creating schema: %v", err)
		}
	} else if !errors.Is(err, db.ErrNoURL) {
		log.Fatalf("error connecting to DB: %v", err)
	}

	searcher, err := news.NewSearcher(cfg.NewsSource, cfg.NewsLang, cfg.NewsRegion, cfg.FinnhubAPIKey)
	if err != nil {
		log.Fatalf("error creating searcher: %v", err)
	}

	store := cache.NewTwoTier(cache.NewLocal(cfg.LocalCacheSize, cfg.LocalCacheTTL), shared)
	coalescer := coalesce.New(searcher, store, coalesce.Options{
		MinInterval:  cfg.MinFetchInterval,
		FetchTimeout: cfg.FetchTimeout,
	})
	tracker := popular.NewTracker(cfg.PopularThreshold)
	prefetcher := popular.NewPrefetcher(tracker, coalescer, cfg.RefreshInterval)
	limiter := ratelimit.New(cfg.RateLimitPerMinute, cfg.RateLimitWindow)

	if repo != nil {
		coalescer.SetArchiver(repo)
		prefetcher.SetStore(repo)
		restored, err := prefetcher.Restore(ctx)
		if err != nil {
			slog.Error("error restoring popular queries", "error", err)
		} else {
			slog.Info("popular queries restored", "count", restored)
		}
	}

	type sweep struct {
		name string
		job  func() int
	}
	idle := 10 * cfg.SweepInterval
	sweeps := []sweep{
		{"ratelimit", limiter.Sweep},
		{"gates", func() int { return coalescer.Sweep(idle) }},
		{"stats", func() int { return tracker.Sweep(idle) }},
	}
	for _, s := range sweeps {
		s := s
		if err := prefetcher.Schedule(s.name, cfg.SweepInterval, func() {
			if n := s.job(); n > 0 {
				slog.Debug("sweep", "name", s.name, "dropped", n)
			}
		}); err != nil {
			log.Fatalf("error scheduling sweep: %v", err)
		}
	}

	if err := prefetcher.Start(); err != nil {
		log.Fatalf("error starting prefetcher: %v", err)
	}

	newsService := service.NewNewsService(store, coalescer, tracker, prefetcher)
	newsHandler := handler.NewNewsHandler(newsService, tracker)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), handler.RequestID())

	allowedOrigins := []string{"http://localhost:3000"}

	if cfg.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.FrontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", handler.RequestIDHeader},
		ExposeHeaders: []string{handler.RequestIDHeader},
	}))

	r.GET("/news", handler.RateLimit(limiter), timeout(cfg.RequestTimeout), newsHandler.GetNews)
	r.GET("/popular", newsHandler.GetPopular)
	r.GET("/health", newsHandler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr, "source", searcher.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down server", "error", err)
	}
	if err := prefetcher.Stop(shutdownCtx); err != nil {
		slog.Error("error stopping prefetcher", "error", err)
	}
}

// timeout bounds how long a request may wait for its result.
func timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
