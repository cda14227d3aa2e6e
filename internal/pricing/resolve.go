// Package pricing turns ledger prices into product prices and keeps the ledger fed.
package pricing

import (
	"context"

	"welcome-craft/internal/models"

	"github.com/shopspring/decimal"
)

// Quote is a resolved sell price. MetalRate is the silver rate per tola the
// price was computed from, nil for fixed-price items.
type Quote struct {
	Price     decimal.Decimal  `json:"price"`
	MetalRate *decimal.Decimal `json:"metalRate,omitempty"`
}

// Resolve prices p against the latest silver record. It returns false when
// the product cannot be priced right now; callers show "price on request".
//
// A constant price always wins. Silver-priced categories use
// rate*weightInTola + makingCost. Nothing else is priceable.
func Resolve(p *models.Product, latestSilver *models.MetalPrice) (Quote, bool) {
	if p == nil {
		return Quote{}, false
	}
	if p.ConstantPrice != nil {
		return Quote{Price: *p.ConstantPrice}, true
	}
	if !p.Category.Type.SilverPriced() || p.WeightInTola == nil || p.MakingCost == nil || latestSilver == nil {
		return Quote{}, false
	}

	rate := latestSilver.PricePerTola
	price := rate.Mul(*p.WeightInTola).Add(*p.MakingCost).Round(2)
	return Quote{Price: price, MetalRate: &rate}, true
}

// Range is the price span of a made-to-order item across its weight range.
type Range struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// ResolveRange prices the weight range of a custom silver product.
func ResolveRange(p *models.Product, latestSilver *models.MetalPrice) (Range, bool) {
	if p == nil || p.Category.Type != models.CategoryCustomSilver || latestSilver == nil {
		return Range{}, false
	}
	if p.WeightMin == nil || p.WeightMax == nil || p.MakingCost == nil {
		return Range{}, false
	}
	rate := latestSilver.PricePerTola
	return Range{
		Min: rate.Mul(*p.WeightMin).Add(*p.MakingCost).Round(2),
		Max: rate.Mul(*p.WeightMax).Add(*p.MakingCost).Round(2),
	}, true
}

// LatestReader reads the current ledger record of a metal.
type LatestReader interface {
	GetLatestPrice(ctx context.Context, metal models.Metal) (*models.MetalPrice, error)
}

// Quoter resolves products against the live ledger.
type Quoter struct {
	prices LatestReader
}

func NewQuoter(prices LatestReader) *Quoter {
	return &Quoter{prices: prices}
}

// Quote reads the silver rate only when p depends on it.
// ok is false when p is priced on request; err is set only for store failures.
func (q *Quoter) Quote(ctx context.Context, p *models.Product) (quote Quote, ok bool, err error) {
	latest, err := q.latestFor(ctx, p)
	if err != nil {
		return Quote{}, false, err
	}
	quote, ok = Resolve(p, latest)
	return quote, ok, nil
}

// QuoteRange is Quote for the weight range of a custom silver product.
func (q *Quoter) QuoteRange(ctx context.Context, p *models.Product) (Range, bool, error) {
	latest, err := q.latestFor(ctx, p)
	if err != nil {
		return Range{}, false, err
	}
	r, ok := ResolveRange(p, latest)
	return r, ok, nil
}

func (q *Quoter) latestFor(ctx context.Context, p *models.Product) (*models.MetalPrice, error) {
	if p == nil || p.ConstantPrice != nil || !p.Category.Type.SilverPriced() {
		return nil, nil
	}
	return q.prices.GetLatestPrice(ctx, models.MetalSilver)
}
