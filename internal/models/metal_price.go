package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metal identifies a commodity ledger.
type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
)

// Metals lists every metal with a ledger, in scheduler order.
var Metals = []Metal{MetalSilver, MetalGold}

func ParseMetal(s string) (Metal, bool) {
	switch Metal(strings.ToLower(strings.TrimSpace(s))) {
	case MetalGold:
		return MetalGold, true
	case MetalSilver:
		return MetalSilver, true
	}
	return "", false
}

// MetalPrice is one ledger row: the price of a metal for one local calendar day.
// (metal, effective_date) is unique; EffectiveDate is local midnight stored in UTC.
type MetalPrice struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Metal         Metal           `json:"metal" gorm:"type:varchar(16);not null;uniqueIndex:idx_metal_effective_date,priority:1"`
	PricePerTola  decimal.Decimal `json:"pricePerTola" gorm:"type:decimal(14,2);not null"`
	EffectiveDate time.Time       `json:"effectiveDate" gorm:"not null;uniqueIndex:idx_metal_effective_date,priority:2"`
	LastScrapedAt time.Time       `json:"lastScrapedAt" gorm:"not null"`
	DailyChange   string          `json:"dailyChange,omitempty" gorm:"type:varchar(32)"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (MetalPrice) TableName() string {
	return "metal_prices"
}
