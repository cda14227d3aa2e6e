package pricing

import (
	"context"
	"time"

	"welcome-craft/internal/ledger"
	"welcome-craft/internal/models"
	"welcome-craft/internal/scraper"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the part of the ledger the updater writes through.
type Store interface {
	UpsertDailyPrice(ctx context.Context, metal models.Metal, price decimal.Decimal, scrapedAt time.Time, dailyChange string) (*ledger.Write, error)
	LatestBefore(ctx context.Context, metal models.Metal, t time.Time) (*models.MetalPrice, error)
}

// Publisher is told about every saved ledger write.
type Publisher interface {
	PublishPrice(rec *models.MetalPrice)
}

// Observer receives scrape and write outcomes.
type Observer interface {
	ObserveScrape(metal models.Metal, result string, d time.Duration)
	ObserveWrite(metal models.Metal, outcome string)
	SetLatestPrice(metal models.Metal, price decimal.Decimal)
}

// UpdateResult is what a manual trigger returns.
type UpdateResult struct {
	Metal       models.Metal    `json:"metal"`
	Price       decimal.Decimal `json:"price"`
	Saved       bool            `json:"saved"`
	DailyChange string          `json:"dailyChange,omitempty"`
	Outcome     ledger.Outcome  `json:"outcome"`
	ScrapedAt   time.Time       `json:"scrapedAt"`
}

// Updater scrapes one metal and writes the result to the ledger.
// It is safe to call from the scheduler and a manual trigger at the same time.
type Updater struct {
	source    scraper.Source
	store     Store
	publisher Publisher
	observer  Observer
	now       func() time.Time
	log       *logrus.Entry
}

type UpdaterOption func(*Updater)

func WithPublisher(p Publisher) UpdaterOption {
	return func(u *Updater) { u.publisher = p }
}

func WithObserver(o Observer) UpdaterOption {
	return func(u *Updater) { u.observer = o }
}

func WithClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) { u.now = now }
}

func WithLogger(log *logrus.Entry) UpdaterOption {
	return func(u *Updater) { u.log = log }
}

func NewUpdater(source scraper.Source, store Store, opts ...UpdaterOption) *Updater {
	u := &Updater{
		source: source,
		store:  store,
		now:    time.Now,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.log = u.log.WithField("metal", source.Metal())
	return u
}

func (u *Updater) Metal() models.Metal { return u.source.Metal() }

// FetchAndSavePrice scrapes and upserts. A scrape failure returns the
// scraper's error and writes nothing.
func (u *Updater) FetchAndSavePrice(ctx context.Context) (*UpdateResult, error) {
	metal := u.source.Metal()

	res, err := u.scrape(ctx)
	if err != nil {
		return nil, err
	}

	change := u.dailyChange(ctx, res)

	w, err := u.store.UpsertDailyPrice(ctx, metal, res.Price, res.ScrapedAt, change)
	if err != nil {
		u.observeWrite(metal, "error")
		u.log.WithError(err).Error("Failed to save scraped price")
		return nil, err
	}
	u.observeWrite(metal, string(w.Outcome))

	if w.Outcome.Saved() {
		if u.observer != nil {
			u.observer.SetLatestPrice(metal, w.Record.PricePerTola)
		}
		if u.publisher != nil {
			u.publisher.PublishPrice(w.Record)
		}
	}

	return &UpdateResult{
		Metal:       metal,
		Price:       res.Price,
		Saved:       w.Outcome.Saved(),
		DailyChange: change,
		Outcome:     w.Outcome,
		ScrapedAt:   res.ScrapedAt,
	}, nil
}

// Preview scrapes without touching the ledger.
func (u *Updater) Preview(ctx context.Context) (*scraper.Result, error) {
	return u.scrape(ctx)
}

func (u *Updater) scrape(ctx context.Context) (*scraper.Result, error) {
	start := time.Now()
	res, err := u.source.Scrape(ctx)
	if u.observer != nil {
		u.observer.ObserveScrape(u.source.Metal(), scraper.Kind(err), time.Since(start))
	}
	if err != nil {
		u.sourceLog().WithError(err).WithField("kind", scraper.Kind(err)).Error("Price scrape failed")
		return nil, err
	}
	return res, nil
}

// dailyChange is the difference to the latest record of an earlier day.
// Without one, the source's own annotation is kept.
func (u *Updater) dailyChange(ctx context.Context, res *scraper.Result) string {
	prev, err := u.store.LatestBefore(ctx, res.Metal, u.now())
	if err != nil {
		u.log.WithError(err).Warn("Previous price lookup failed, keeping scraped change")
		return res.DailyChange
	}
	if prev == nil {
		return res.DailyChange
	}
	return FormatChange(res.Price.Sub(prev.PricePerTola))
}

func (u *Updater) observeWrite(metal models.Metal, outcome string) {
	if u.observer != nil {
		u.observer.ObserveWrite(metal, outcome)
	}
}

func (u *Updater) sourceLog() *logrus.Entry {
	entry := u.log
	if d, ok := u.source.(interface {
		URL() string
		SelectorName() string
	}); ok {
		entry = entry.WithFields(logrus.Fields{"url": d.URL(), "selector": d.SelectorName()})
	}
	return entry
}

// FormatChange renders a signed difference: "+120", "-45", "0".
func FormatChange(d decimal.Decimal) string {
	d = d.Round(2)
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}
