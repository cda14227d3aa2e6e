package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"welcome-craft/internal/api"
	"welcome-craft/internal/cart"
	"welcome-craft/internal/catalog"
	"welcome-craft/internal/config"
	"welcome-craft/internal/database"
	"welcome-craft/internal/ledger"
	"welcome-craft/internal/live"
	"welcome-craft/internal/logging"
	"welcome-craft/internal/messaging"
	"welcome-craft/internal/metrics"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"
	"welcome-craft/internal/scheduler"
	"welcome-craft/internal/scraper"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug("No .env file found")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	// prices go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.Initialize(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(logging.Component(log, "ledger"))}
	if cfg.RedisAddr != "" {
		cache, err := ledger.NewRedisCache(ledger.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, serving latest prices from the database")
		} else {
			defer cache.Close()
			ledgerOpts = append(ledgerOpts, ledger.WithCache(cache))
			log.WithField("addr", cfg.RedisAddr).Info("Latest price cache enabled")
		}
	}
	prices := ledger.New(db, ledgerOpts...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := live.NewHub(logging.Component(log, "live"))
	for _, metal := range models.Metals {
		rec, err := prices.GetLatestPrice(context.Background(), metal)
		if err != nil {
			log.WithError(err).WithField("metal", metal).Warn("Could not load latest price")
			continue
		}
		hub.Seed(rec)
		if rec != nil {
			m.SetLatestPrice(metal, rec.PricePerTola)
		}
	}

	fetcher := scraper.NewFetcher(scraper.FetcherOptions{
		Timeout:   cfg.ScrapeTimeout,
		MinGap:    cfg.ScrapeMinGap,
		UserAgent: cfg.ScrapeUserAgent,
	})
	sources, err := scraper.DefaultRegistry().BuildSources(fetcher,
		scraper.Target{Metal: models.MetalSilver, URL: cfg.SilverPriceURL, Selector: cfg.SilverSelector},
		scraper.Target{Metal: models.MetalGold, URL: cfg.GoldPriceURL, Selector: cfg.GoldSelector},
	)
	if err != nil {
		log.WithError(err).Fatal("Invalid scraper configuration")
	}

	var jobs []scheduler.Job
	updaters := make(map[models.Metal]api.PriceUpdater, len(sources))
	for _, src := range sources {
		u := pricing.NewUpdater(src, prices,
			pricing.WithPublisher(hub),
			pricing.WithObserver(m),
			pricing.WithLogger(logging.Component(log, "updater")),
		)
		jobs = append(jobs, u)
		updaters[src.Metal()] = u
	}

	sched, err := scheduler.New(scheduler.Config{
		EveryMinutes: cfg.ScheduleEveryMinutes,
		StartHour:    cfg.ScheduleStartHour,
		EndHour:      cfg.ScheduleEndHour,
		JobTimeout:   cfg.ScrapeTimeout * 3,
	}, jobs, logging.Component(log, "scheduler"))
	if err != nil {
		log.WithError(err).Fatal("Failed to create scheduler")
	}

	carts := cart.NewService(db, pricing.NewQuoter(prices), messaging.NewWhatsApp(cfg.WhatsAppPhone),
		cart.WithTTL(cfg.CartTTL),
		cart.WithEvents(m),
		cart.WithLogger(logging.Component(log, "cart")),
	)
	if err := sched.AddMaintenance("@hourly", "expire-carts", func(ctx context.Context) error {
		_, err := carts.ExpireStale(ctx)
		return err
	}); err != nil {
		log.WithError(err).Fatal("Failed to schedule cart expiry")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(logging.Component(log, "http")), m.GinMiddleware())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.Health().Snapshot())
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	r.GET("/ws/prices", gin.WrapF(hub.ServeWS))

	api.SetupRoutes(r.Group("/api"), api.Deps{
		Updaters:  updaters,
		Ledger:    prices,
		Catalog:   catalog.NewService(db),
		Carts:     carts,
		JWTSecret: cfg.JWTSecret,
		Log:       logging.Component(log, "api"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start()
	if next, err := sched.NextRun(time.Now()); err == nil {
		log.WithField("next", next.Format(time.RFC3339)).Info("Next price update scheduled")
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
	if err := sched.Stop(ctx); err != nil {
		log.WithError(err).Error("Scheduler did not stop in time")
	}
}
