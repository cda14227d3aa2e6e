package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderContacted OrderStatus = "contacted"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderContacted, OrderConfirmed, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Order is a single-product order. Price fields are frozen at creation.
type Order struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	CustomerName    string  `json:"customerName" gorm:"not null"`
	CustomerPhone   string  `json:"customerPhone" gorm:"not null"`
	CustomerEmail   string  `json:"customerEmail,omitempty"`
	CustomerAddress string  `json:"customerAddress,omitempty"`
	ProductID       uint    `json:"productId" gorm:"index;not null"`
	Product         Product `json:"product" gorm:"foreignKey:ProductID"`
	Quantity        int     `json:"quantity" gorm:"not null;default:1"`

	PriceSnapshot       *decimal.Decimal `json:"priceSnapshot" gorm:"type:decimal(14,2)"`
	SilverPriceSnapshot *decimal.Decimal `json:"silverPriceSnapshot,omitempty" gorm:"type:decimal(14,2)"`
	TotalPrice          *decimal.Decimal `json:"totalPrice" gorm:"type:decimal(14,2)"`

	Notes         string         `json:"notes,omitempty" gorm:"type:text"`
	Customization *Customization `json:"customization,omitempty" gorm:"serializer:json;type:text"`
	Status        OrderStatus    `json:"status" gorm:"type:varchar(16);index;not null;default:'pending'"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// All lists every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&MetalPrice{},
		&Category{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
	}
}
