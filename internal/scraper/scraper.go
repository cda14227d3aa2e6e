// Package scraper fetches commodity price pages and extracts the price of one metal.
//
// Each source site is described by a Selector; the HTML scraper itself only
// fetches, delegates location to the selector, and normalizes the text it gets back.
package scraper

import (
	"bytes"
	"context"
	"time"

	"welcome-craft/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Result is a normalized scrape. DailyChange is "" when the source has none.
type Result struct {
	Metal       models.Metal    `json:"metal"`
	Price       decimal.Decimal `json:"price"`
	ScrapedAt   time.Time       `json:"scrapedAt"`
	DailyChange string          `json:"dailyChange,omitempty"`
}

// Source produces one Result per call for a fixed metal.
type Source interface {
	Metal() models.Metal
	Scrape(ctx context.Context) (*Result, error)
}

// PageFetcher returns the raw body of a page.
type PageFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type HTMLScraper struct {
	metal    models.Metal
	url      string
	fetcher  PageFetcher
	selector Selector
	now      func() time.Time
}

type Option func(*HTMLScraper)

// WithClock overrides the clock used to stamp ScrapedAt.
func WithClock(now func() time.Time) Option {
	return func(s *HTMLScraper) { s.now = now }
}

func NewHTMLScraper(metal models.Metal, url string, fetcher PageFetcher, selector Selector, opts ...Option) *HTMLScraper {
	s := &HTMLScraper{
		metal:    metal,
		url:      url,
		fetcher:  fetcher,
		selector: selector,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTMLScraper) Metal() models.Metal { return s.metal }

// SelectorName is the configured selector, for logs.
func (s *HTMLScraper) SelectorName() string { return s.selector.Name() }

func (s *HTMLScraper) URL() string { return s.url }

// Scrape fetches the page and extracts the price. ScrapedAt is stamped after
// parsing succeeds so that ordering reflects completion, not request start.
func (s *HTMLScraper) Scrape(ctx context.Context) (*Result, error) {
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, &NetworkError{Metal: s.metal, URL: s.url, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Metal: s.metal, Selector: s.selector.Name(), Detail: "unreadable document: " + err.Error()}
	}

	m, err := s.selector.Locate(doc)
	if err != nil {
		return nil, &ParseError{Metal: s.metal, Selector: s.selector.Name(), Detail: err.Error()}
	}

	price, err := ParsePrice(m.PriceText)
	if err != nil {
		return nil, &ValueError{Metal: s.metal, Text: m.PriceText, Reason: err.Error()}
	}

	return &Result{
		Metal:       s.metal,
		Price:       price,
		ScrapedAt:   s.now(),
		DailyChange: ParseChange(m.ChangeText),
	}, nil
}
