// Command price-monitor scrapes the configured metal sources outside the server.
// By default it only prints; -save writes through the same ledger path as the scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"welcome-craft/internal/config"
	"welcome-craft/internal/database"
	"welcome-craft/internal/ledger"
	"welcome-craft/internal/logging"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"
	"welcome-craft/internal/scraper"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	metalFlag = flag.String("metal", "", "only this metal (gold or silver); default both")
	save      = flag.Bool("save", false, "write results to the price ledger")
	once      = flag.Bool("once", true, "run a single pass instead of looping")
	interval  = flag.Duration("interval", 15*time.Minute, "loop interval when -once=false")
	selectors = flag.Bool("selectors", false, "list known selectors and exit")
)

type monitor struct {
	sources  []*scraper.HTMLScraper
	updaters []*pricing.Updater
	log      *logrus.Entry
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	entry := logging.Component(log, "price-monitor")

	registry := scraper.DefaultRegistry()
	if *selectors {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
		return
	}

	targets := []scraper.Target{
		{Metal: models.MetalSilver, URL: cfg.SilverPriceURL, Selector: cfg.SilverSelector},
		{Metal: models.MetalGold, URL: cfg.GoldPriceURL, Selector: cfg.GoldSelector},
	}
	if *metalFlag != "" {
		metal, ok := models.ParseMetal(*metalFlag)
		if !ok {
			entry.Fatalf("unknown metal %q", *metalFlag)
		}
		for _, t := range targets {
			if t.Metal == metal {
				targets = []scraper.Target{t}
				break
			}
		}
	}

	fetcher := scraper.NewFetcher(scraper.FetcherOptions{
		Timeout:   cfg.ScrapeTimeout,
		MinGap:    cfg.ScrapeMinGap,
		UserAgent: cfg.ScrapeUserAgent,
	})
	sources, err := registry.BuildSources(fetcher, targets...)
	if err != nil {
		entry.WithError(err).Fatal("Invalid scraper configuration")
	}

	m := &monitor{sources: sources, log: entry}
	if *save {
		db, err := database.Initialize(cfg.DatabaseDriver, cfg.DatabaseURL, log)
		if err != nil {
			entry.WithError(err).Fatal("Failed to connect to database")
		}
		store := ledger.New(db, ledger.WithLogger(logging.Component(log, "ledger")))
		for _, src := range sources {
			m.updaters = append(m.updaters, pricing.NewUpdater(src, store, pricing.WithLogger(entry)))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if failed := m.runOnce(ctx); failed > 0 {
			os.Exit(1)
		}
		return
	}
	m.runLoop(ctx)
}

// runOnce returns the number of failed metals.
func (m *monitor) runOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	failed := 0
	if len(m.updaters) > 0 {
		for _, u := range m.updaters {
			res, err := u.FetchAndSavePrice(ctx)
			if err != nil {
				m.log.WithError(err).WithField("metal", u.Metal()).WithField("kind", scraper.Kind(err)).Error("Update failed")
				failed++
				continue
			}
			fmt.Printf("%-6s Rs. %s/tola  %-9s change=%s\n", res.Metal, res.Price.StringFixed(2), res.Outcome, res.DailyChange)
		}
		return failed
	}

	for _, src := range m.sources {
		res, err := src.Scrape(ctx)
		if err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"metal":    src.Metal(),
				"selector": src.SelectorName(),
				"url":      src.URL(),
				"kind":     scraper.Kind(err),
			}).Error("Scrape failed")
			failed++
			continue
		}
		fmt.Printf("%-6s Rs. %s/tola  change=%s  (%s via %s)\n", res.Metal, res.Price.StringFixed(2), res.DailyChange, src.URL(), src.SelectorName())
	}
	return failed
}

func (m *monitor) runLoop(ctx context.Context) {
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	m.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			m.runOnce(ctx)
		case <-ctx.Done():
			m.log.Info("Monitor stopped")
			return
		}
	}
}
