package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type FetcherOptions struct {
	Timeout   time.Duration
	MinGap    time.Duration // minimum spacing between requests; 0 disables
	UserAgent string
}

// Fetcher is a resty client shared by every scraper of one process.
type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "text/html,application/xhtml+xml")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	limit := rate.Inf
	if opts.MinGap > 0 {
		limit = rate.Every(opts.MinGap)
	}

	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
