package scraper

import (
	"errors"
	"fmt"

	"welcome-craft/internal/models"
)

var (
	ErrNetwork = errors.New("scrape network error")
	ErrParse   = errors.New("scrape parse error")
	ErrValue   = errors.New("scrape value error")
)

// NetworkError: the source was unreachable, timed out or answered non-2xx.
type NetworkError struct {
	Metal models.Metal
	URL   string
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s scrape: fetch %s: %v", e.Metal, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error        { return e.Err }
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ParseError: the page no longer has the element the selector expects.
type ParseError struct {
	Metal    models.Metal
	Selector string
	Detail   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s scrape: selector %s: %s", e.Metal, e.Selector, e.Detail)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValueError: the located text is not a positive number.
type ValueError struct {
	Metal  models.Metal
	Text   string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s scrape: invalid price %q: %s", e.Metal, e.Text, e.Reason)
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }

// Kind names the error class for logs and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrValue):
		return "value"
	default:
		return "other"
	}
}
