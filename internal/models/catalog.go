package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryType decides which pricing rule applies to a product.
type CategoryType string

const (
	CategorySilver       CategoryType = "silver"
	CategoryCustomSilver CategoryType = "customSilver"
	CategoryGold         CategoryType = "gold"
	CategoryOther        CategoryType = "other"
)

func (t CategoryType) Valid() bool {
	switch t {
	case CategorySilver, CategoryCustomSilver, CategoryGold, CategoryOther:
		return true
	}
	return false
}

// SilverPriced reports whether products of this type follow the silver rate.
func (t CategoryType) SilverPriced() bool {
	return t == CategorySilver || t == CategoryCustomSilver
}

type Category struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:varchar(128);uniqueIndex;not null"`
	Description string       `json:"description"`
	ImageURL    string       `json:"imageUrl"`
	Type        CategoryType `json:"type" gorm:"type:varchar(16);not null;default:'other'"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Product is read-only input to price resolution.
// Fixed-price items carry ConstantPrice; silver items carry WeightInTola and MakingCost.
// Deletion is soft so carts and orders keep the product they were priced from.
type Product struct {
	ID          uint     `json:"id" gorm:"primaryKey"`
	Title       string   `json:"title" gorm:"type:varchar(255);not null"`
	Description string   `json:"description" gorm:"type:text"`
	ImageURLs   []string `json:"imageUrl" gorm:"serializer:json;type:text"`
	CategoryID  uint     `json:"categoryId" gorm:"index;not null"`
	Category    Category `json:"category" gorm:"foreignKey:CategoryID"`

	ConstantPrice *decimal.Decimal `json:"constantPrice,omitempty" gorm:"type:decimal(14,2)"`
	Height        string           `json:"height,omitempty"`

	WeightInTola *decimal.Decimal `json:"weightInTola,omitempty" gorm:"type:decimal(10,3)"`
	MakingCost   *decimal.Decimal `json:"makingCost,omitempty" gorm:"type:decimal(14,2)"`

	// Made-to-order silver items.
	WeightMin *decimal.Decimal `json:"weightMin,omitempty" gorm:"type:decimal(10,3)"`
	WeightMax *decimal.Decimal `json:"weightMax,omitempty" gorm:"type:decimal(10,3)"`

	IsCustomizable bool           `json:"isCustomizable" gorm:"default:false"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// WithDeleted lets a preload reach soft-deleted products.
func WithDeleted(db *gorm.DB) *gorm.DB { return db.Unscoped() }
