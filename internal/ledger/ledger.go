// Package ledger stores one price per metal per local calendar day.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"welcome-craft/internal/localtime"
	"welcome-craft/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome of an upsert.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Saved reports whether the write changed the ledger.
func (o Outcome) Saved() bool { return o == OutcomeCreated || o == OutcomeUpdated }

// Write is the result of UpsertDailyPrice. Record is the row as stored after the call.
type Write struct {
	Outcome Outcome
	Record  *models.MetalPrice
}

var ErrWrite = errors.New("ledger write failed")

// WriteError wraps a store failure during an upsert. Nothing was written.
type WriteError struct {
	Metal models.Metal
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s ledger write: %v", e.Metal, e.Err)
}

func (e *WriteError) Unwrap() error        { return e.Err }
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Cache holds the latest record per metal. Failures are logged and ignored.
type Cache interface {
	GetLatest(ctx context.Context, metal models.Metal) (*models.MetalPrice, error)
	SetLatest(ctx context.Context, rec *models.MetalPrice) error
	Invalidate(ctx context.Context, metal models.Metal) error
}

type Ledger struct {
	db    *gorm.DB
	now   func() time.Time
	cache Cache
	log   *logrus.Entry
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithCache(c Cache) Option {
	return func(l *Ledger) { l.cache = c }
}

func WithLogger(log *logrus.Entry) Option {
	return func(l *Ledger) { l.log = log }
}

func New(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:  db,
		now: time.Now,
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FindRecordForDate returns the record of t's local day, or nil.
func (l *Ledger) FindRecordForDate(ctx context.Context, metal models.Metal, t time.Time) (*models.MetalPrice, error) {
	return findForDay(l.db.WithContext(ctx), metal, t)
}

func findForDay(db *gorm.DB, metal models.Metal, t time.Time) (*models.MetalPrice, error) {
	start, end := localtime.DayRange(t)
	var rec models.MetalPrice
	err := db.Where("metal = ? AND effective_date >= ? AND effective_date < ?", metal, start, end).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertDailyPrice keeps one row per metal for today's local day.
// A new day creates the row. An existing row is overwritten only when the
// price differs and scrapedAt is newer than the stored scrape.
func (l *Ledger) UpsertDailyPrice(ctx context.Context, metal models.Metal, price decimal.Decimal, scrapedAt time.Time, dailyChange string) (*Write, error) {
	effective := localtime.StartOfLocalDay(l.now())
	scrapedAt = scrapedAt.UTC().Truncate(time.Millisecond)

	var out Write
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findForDay(tx, metal, effective)
		if err != nil {
			return err
		}

		if existing == nil {
			rec := models.MetalPrice{
				Metal:         metal,
				PricePerTola:  price,
				EffectiveDate: effective,
				LastScrapedAt: scrapedAt,
				DailyChange:   dailyChange,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				out = Write{Outcome: OutcomeCreated, Record: &rec}
				return nil
			}

			// a concurrent writer created the day's row first; a locking read
			// sees its commit under repeatable read
			existing, err = findForDay(tx.Clauses(clause.Locking{Strength: "UPDATE"}), metal, effective)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("row for %s missing after insert conflict", localtime.Date(effective))
			}
		}

		if existing.PricePerTola.Equal(price) || !scrapedAt.After(existing.LastScrapedAt) {
			out = Write{Outcome: OutcomeUnchanged, Record: existing}
			return nil
		}

		res := tx.Model(&models.MetalPrice{}).
			Where("id = ? AND last_scraped_at < ?", existing.ID, scrapedAt).
			Updates(map[string]interface{}{
				"price_per_tola":  price,
				"last_scraped_at": scrapedAt,
				"daily_change":    dailyChange,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			out = Write{Outcome: OutcomeUnchanged, Record: existing}
			return nil
		}

		existing.PricePerTola = price
		existing.LastScrapedAt = scrapedAt
		existing.DailyChange = dailyChange
		out = Write{Outcome: OutcomeUpdated, Record: existing}
		return nil
	})
	if err != nil {
		return nil, &WriteError{Metal: metal, Err: err}
	}

	if out.Outcome.Saved() && l.cache != nil {
		if err := l.cache.Invalidate(ctx, metal); err != nil {
			l.log.WithError(err).WithField("metal", metal).Warn("Failed to invalidate latest price cache")
		}
	}
	return &out, nil
}

// GetLatestPrice returns the most recent record by effective date, or nil.
func (l *Ledger) GetLatestPrice(ctx context.Context, metal models.Metal) (*models.MetalPrice, error) {
	if l.cache != nil {
		rec, err := l.cache.GetLatest(ctx, metal)
		if err != nil {
			l.log.WithError(err).WithField("metal", metal).Debug("Latest price cache read failed")
		} else if rec != nil {
			return rec, nil
		}
	}

	var rec models.MetalPrice
	err := l.db.WithContext(ctx).
		Where("metal = ?", metal).
		Order("effective_date DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s price: %w", metal, err)
	}

	if l.cache != nil {
		if err := l.cache.SetLatest(ctx, &rec); err != nil {
			l.log.WithError(err).WithField("metal", metal).Debug("Latest price cache write failed")
		}
	}
	return &rec, nil
}

// LatestBefore returns the newest record of a local day earlier than t's, or nil.
func (l *Ledger) LatestBefore(ctx context.Context, metal models.Metal, t time.Time) (*models.MetalPrice, error) {
	var rec models.MetalPrice
	err := l.db.WithContext(ctx).
		Where("metal = ? AND effective_date < ?", metal, localtime.StartOfLocalDay(t)).
		Order("effective_date DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s price before %s: %w", metal, localtime.Date(t), err)
	}
	return &rec, nil
}
