// Package catalog stores categories and products.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"welcome-craft/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	ErrConflict = errors.New("already exists")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string        { return e.Field + ": " + e.Message }
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CategoryInput struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	ImageURL    string              `json:"imageUrl"`
	Type        models.CategoryType `json:"type"`
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if in.Type == "" {
		in.Type = models.CategoryOther
	}
	if !in.Type.Valid() {
		return nil, invalid("type", fmt.Sprintf("unknown category type %q", in.Type))
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("name = ?", name).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("category %q: %w", name, ErrConflict)
	}

	category := models.Category{Name: name, Description: in.Description, ImageURL: in.ImageURL, Type: in.Type}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

type ProductFilter struct {
	CategoryID uint
	Type       models.CategoryType
	Search     string
}

type ProductInput struct {
	Title          string           `json:"title" binding:"required"`
	Description    string           `json:"description"`
	ImageURLs      []string         `json:"imageUrl"`
	CategoryID     uint             `json:"categoryId" binding:"required"`
	ConstantPrice  *decimal.Decimal `json:"constantPrice"`
	Height         string           `json:"height"`
	WeightInTola   *decimal.Decimal `json:"weightInTola"`
	MakingCost     *decimal.Decimal `json:"makingCost"`
	WeightMin      *decimal.Decimal `json:"weightMin"`
	WeightMax      *decimal.Decimal `json:"weightMax"`
	IsCustomizable bool             `json:"isCustomizable"`
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Preload("Category").Model(&models.Product{})
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.Type != "" {
		q = q.Where("category_id IN (?)", s.db.Model(&models.Category{}).Select("id").Where("type = ?", f.Type))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var products []models.Product
	if err := q.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Preload("Category").First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, in.CategoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid("categoryId", "category does not exist")
	}
	if err != nil {
		return nil, err
	}

	product := models.Product{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		ImageURLs:      in.ImageURLs,
		CategoryID:     category.ID,
		Category:       category,
		ConstantPrice:  in.ConstantPrice,
		Height:         in.Height,
		WeightInTola:   in.WeightInTola,
		MakingCost:     in.MakingCost,
		WeightMin:      in.WeightMin,
		WeightMax:      in.WeightMax,
		IsCustomizable: in.IsCustomizable,
	}
	if err := Validate(&product); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit("Category").Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &product, nil
}

// DeleteProduct hides the product from the catalog. Carts and orders that
// reference it still load it.
func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return fmt.Errorf("product %d is still referenced: %w", id, ErrConflict)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// isForeignKeyViolation matches the mysql and sqlite messages.
func isForeignKeyViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint")
}

// Validate checks the fields a product's category type requires.
// p.Category must be loaded.
func Validate(p *models.Product) error {
	if p.Title == "" {
		return invalid("title", "is required")
	}
	if p.ConstantPrice != nil && !p.ConstantPrice.IsPositive() {
		return invalid("constantPrice", "must be positive")
	}
	if p.WeightInTola != nil && !p.WeightInTola.IsPositive() {
		return invalid("weightInTola", "must be positive")
	}
	if p.MakingCost != nil && p.MakingCost.IsNegative() {
		return invalid("makingCost", "cannot be negative")
	}

	switch p.Category.Type {
	case models.CategorySilver, models.CategoryCustomSilver:
		if p.WeightInTola == nil {
			return invalid("weightInTola", "is required for silver products")
		}
		if p.MakingCost == nil {
			return invalid("makingCost", "is required for silver products")
		}
	case models.CategoryGold:
		if strings.TrimSpace(p.Height) == "" {
			return invalid("height", "is required for gold products")
		}
	}

	if p.Category.Type == models.CategoryCustomSilver {
		if p.WeightMin == nil || !p.WeightMin.IsPositive() {
			return invalid("weightMin", "is required for custom silver products")
		}
		if p.WeightMax == nil || !p.WeightMax.GreaterThan(*p.WeightMin) {
			return invalid("weightMax", "must be greater than weightMin")
		}
	}
	return nil
}
