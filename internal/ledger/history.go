package ledger

import (
	"context"
	"fmt"
	"time"

	"welcome-craft/internal/localtime"
	"welcome-craft/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 100
)

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalRecords int64 `json:"totalRecords"`
	HasNext      bool  `json:"hasNext"`
}

type HistoryPage struct {
	History    []models.MetalPrice `json:"history"`
	Pagination Pagination          `json:"pagination"`
}

// GetPriceHistory pages through a metal's records, newest first.
// page starts at 1; out-of-range page and limit values are clamped.
func (l *Ledger) GetPriceHistory(ctx context.Context, metal models.Metal, page, limit int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	scope := func() *gorm.DB {
		return l.db.WithContext(ctx).Model(&models.MetalPrice{}).Where("metal = ?", metal)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count %s history: %w", metal, err)
	}

	records := make([]models.MetalPrice, 0, limit)
	if err := scope().Order("effective_date DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list %s history: %w", metal, err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &HistoryPage{
		History: records,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalRecords: total,
			HasNext:      page < totalPages,
		},
	}, nil
}

// Between returns the records whose local day lies within [from, to], newest first.
// A zero bound is open.
func (l *Ledger) Between(ctx context.Context, metal models.Metal, from, to time.Time) ([]models.MetalPrice, error) {
	db := l.db.WithContext(ctx).Where("metal = ?", metal)
	if !from.IsZero() {
		db = db.Where("effective_date >= ?", localtime.StartOfLocalDay(from))
	}
	if !to.IsZero() {
		_, end := localtime.DayRange(to)
		db = db.Where("effective_date < ?", end)
	}

	var records []models.MetalPrice
	if err := db.Order("effective_date DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%s history range: %w", metal, err)
	}
	return records, nil
}
