package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartCheckout  CartStatus = "checkout"
	CartOrdered   CartStatus = "ordered"
	CartAbandoned CartStatus = "abandoned"
)

// Cart is a session cart. Subtotal and TotalItems are derived from Items by Recalculate.
type Cart struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	SessionID       string     `json:"sessionId" gorm:"type:varchar(128);index;not null"`
	CustomerName    string     `json:"customerName,omitempty"`
	CustomerPhone   string     `json:"customerPhone,omitempty"`
	CustomerEmail   string     `json:"customerEmail,omitempty"`
	CustomerAddress string     `json:"customerAddress,omitempty"`
	OrderNotes      string     `json:"orderNotes,omitempty" gorm:"type:text"`
	Items           []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`

	Subtotal         decimal.Decimal `json:"subtotal" gorm:"type:decimal(14,2)"`
	TotalItems       int             `json:"totalItems"`
	HasUnpricedItems bool            `json:"hasUnpricedItems" gorm:"-"`

	Status    CartStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'active'"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"index"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem is one line. PriceSnapshot is nil when the product is priced on request.
type CartItem struct {
	ID                  uint             `json:"-" gorm:"primaryKey"`
	ItemID              string           `json:"id" gorm:"type:char(36);uniqueIndex;not null"`
	CartID              uint             `json:"-" gorm:"index;not null"`
	ProductID           uint             `json:"productId" gorm:"index;not null"`
	Product             Product          `json:"product" gorm:"foreignKey:ProductID"`
	Quantity            int              `json:"quantity" gorm:"not null;default:1"`
	PriceSnapshot       *decimal.Decimal `json:"priceSnapshot" gorm:"type:decimal(14,2)"`
	SilverPriceSnapshot *decimal.Decimal `json:"silverPriceSnapshot,omitempty" gorm:"type:decimal(14,2)"`
	Customization       *Customization   `json:"customization,omitempty" gorm:"serializer:json;type:text"`
	AddedAt             time.Time        `json:"addedAt"`
	PricedAt            time.Time        `json:"pricedAt"`
}

// Customization is a shopper's request on a made-to-order line. It does not change the price.
type Customization struct {
	Weight *decimal.Decimal `json:"weight,omitempty"`
	Notes  string           `json:"notes,omitempty"`
}

// LineTotal is PriceSnapshot × Quantity, or false when the line has no price.
func (i CartItem) LineTotal() (decimal.Decimal, bool) {
	if i.PriceSnapshot == nil {
		return decimal.Zero, false
	}
	return i.PriceSnapshot.Mul(decimal.NewFromInt(int64(i.Quantity))), true
}

// Recalculate folds the line snapshots into the cart totals.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	count := 0
	unpriced := false
	for _, item := range c.Items {
		count += item.Quantity
		if line, ok := item.LineTotal(); ok {
			total = total.Add(line)
		} else {
			unpriced = true
		}
	}
	c.Subtotal = total
	c.TotalItems = count
	c.HasUnpricedItems = unpriced
}
