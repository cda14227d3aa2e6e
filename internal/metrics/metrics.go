package metrics

import (
	"strconv"
	"sync"
	"time"

	"welcome-craft/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics holds all Prometheus metrics for the pricing backend.
type Metrics struct {
	ScrapesTotal   *prometheus.CounterVec   // labels: metal, result
	ScrapeDuration *prometheus.HistogramVec // labels: metal
	LedgerWrites   *prometheus.CounterVec   // labels: metal, outcome
	LatestPrice    *prometheus.GaugeVec     // labels: metal

	OrdersTotal   prometheus.Counter
	CheckoutTotal prometheus.Counter

	HTTPRequests *prometheus.CounterVec // labels: method, route, status

	health *Health
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScrapesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "welcomecraft_scrapes_total",
			Help: "Price scrapes by metal and result (ok, network, parse, value)",
		}, []string{"metal", "result"}),
		ScrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "welcomecraft_scrape_duration_seconds",
			Help:    "Time to fetch and parse a price page",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"metal"}),
		LedgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "welcomecraft_ledger_writes_total",
			Help: "Ledger upserts by metal and outcome (created, updated, unchanged, error)",
		}, []string{"metal", "outcome"}),
		LatestPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "welcomecraft_latest_price_per_tola",
			Help: "Last saved price per tola",
		}, []string{"metal"}),
		OrdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "welcomecraft_orders_total",
			Help: "Orders created",
		}),
		CheckoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "welcomecraft_cart_checkouts_total",
			Help: "Carts checked out through WhatsApp",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "welcomecraft_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		health: NewHealth(),
	}

	reg.MustRegister(
		m.ScrapesTotal,
		m.ScrapeDuration,
		m.LedgerWrites,
		m.LatestPrice,
		m.OrdersTotal,
		m.CheckoutTotal,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) Health() *Health { return m.health }

func (m *Metrics) ObserveScrape(metal models.Metal, result string, d time.Duration) {
	m.ScrapesTotal.WithLabelValues(string(metal), result).Inc()
	m.ScrapeDuration.WithLabelValues(string(metal)).Observe(d.Seconds())
	m.health.recordScrape(metal, result)
}

func (m *Metrics) ObserveWrite(metal models.Metal, outcome string) {
	m.LedgerWrites.WithLabelValues(string(metal), outcome).Inc()
}

func (m *Metrics) SetLatestPrice(metal models.Metal, price decimal.Decimal) {
	f, _ := price.Float64()
	m.LatestPrice.WithLabelValues(string(metal)).Set(f)
}

func (m *Metrics) OrderCreated()   { m.OrdersTotal.Inc() }
func (m *Metrics) CartCheckedOut() { m.CheckoutTotal.Inc() }

// GinMiddleware counts requests by matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// MetalHealth is the scrape state of one metal.
type MetalHealth struct {
	LastSuccessAt time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt time.Time `json:"lastFailureAt,omitempty"`
	LastResult    string    `json:"lastResult,omitempty"`
}

// Health is reported by /health.
type Health struct {
	mu        sync.RWMutex
	now       func() time.Time
	startedAt time.Time
	metals    map[models.Metal]MetalHealth
}

func NewHealth() *Health {
	return &Health{
		now:       time.Now,
		startedAt: time.Now(),
		metals:    make(map[models.Metal]MetalHealth),
	}
}

func (h *Health) recordScrape(metal models.Metal, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	mh := h.metals[metal]
	mh.LastResult = result
	if result == "ok" {
		mh.LastSuccessAt = h.now()
	} else {
		mh.LastFailureAt = h.now()
	}
	h.metals[metal] = mh
}

type HealthSnapshot struct {
	Status    string                       `json:"status"`
	StartedAt time.Time                    `json:"startedAt"`
	Scrapers  map[models.Metal]MetalHealth `json:"scrapers"`
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	scrapers := make(map[models.Metal]MetalHealth, len(h.metals))
	for k, v := range h.metals {
		scrapers[k] = v
	}
	return HealthSnapshot{Status: "ok", StartedAt: h.startedAt, Scrapers: scrapers}
}
