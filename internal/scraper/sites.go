package scraper

import (
	"fmt"
	"sort"
	"sync"

	"welcome-craft/internal/models"
)

// Known source layouts. A markup change on a source site is fixed here.
var builtinSelectors = []Selector{
	// sharesansar.com/bullion: bullion table, label in the first cell, rate in the third
	RowLabelSelector{ID: "silver-row", Rows: "table tbody tr", Label: "silver", PriceColumn: 2, ChangeColumn: -1},
	RowLabelSelector{ID: "gold-row", Rows: "table tbody tr", Label: "fine gold", PriceColumn: 2, ChangeColumn: -1},

	// bullion cards highlighted with the metal's colour
	StyledCellSelector{ID: "gold-cell", Cell: `td[style*='background-color: #D4AF37']`, Price: "h4 p", Change: "h5 p b font"},
	StyledCellSelector{ID: "silver-cell", Cell: `td[style*='background-color: #C0C0C0']`, Price: "h4 p", Change: "h5 p b font"},
}

type Registry struct {
	mu        sync.RWMutex
	selectors map[string]Selector
}

func NewRegistry() *Registry {
	return &Registry{selectors: make(map[string]Selector)}
}

// DefaultRegistry holds every builtin selector.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtinSelectors {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Selector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectors[s.Name()] = s
}

func (r *Registry) Get(name string) (Selector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.selectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown selector %q", name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.selectors))
	for name := range r.selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target is the page and selector configured for one metal.
type Target struct {
	Metal    models.Metal
	URL      string
	Selector string
}

// BuildSources resolves each target's selector in r. An unknown selector fails the whole set.
func (r *Registry) BuildSources(fetcher PageFetcher, targets ...Target) ([]*HTMLScraper, error) {
	sources := make([]*HTMLScraper, 0, len(targets))
	for _, t := range targets {
		sel, err := r.Get(t.Selector)
		if err != nil {
			return nil, fmt.Errorf("%s source: %w", t.Metal, err)
		}
		sources = append(sources, NewHTMLScraper(t.Metal, t.URL, fetcher, sel))
	}
	return sources, nil
}
