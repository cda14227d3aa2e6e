package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"welcome-craft/internal/messaging"
	"welcome-craft/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderInput struct {
	CustomerName    string                `json:"customerName"`
	CustomerPhone   string                `json:"customerPhone"`
	CustomerEmail   string                `json:"customerEmail"`
	CustomerAddress string                `json:"customerAddress"`
	ProductID       uint                  `json:"productId"`
	Quantity        int                   `json:"quantity"`
	Notes           string                `json:"notes"`
	Customization   *models.Customization `json:"customization"`
}

// OrderReceipt is a created order plus the admin notification link.
// WhatsAppURL is empty when no phone is configured.
type OrderReceipt struct {
	Order       *models.Order `json:"order"`
	WhatsAppURL string        `json:"whatsappUrl,omitempty"`
}

// CreateOrder freezes the current unit price, the silver rate behind it
// and the total onto a new pending order.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*OrderReceipt, error) {
	info := CustomerInfo{Name: in.CustomerName, Phone: in.CustomerPhone}
	if err := info.validate(); err != nil {
		return nil, err
	}
	if in.ProductID == 0 {
		return nil, invalidf("product id is required")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > MaxQuantity {
		return nil, invalidf("quantity must be between 1 and %d", MaxQuantity)
	}

	product, err := s.product(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	quote, ok, err := s.quoter.Quote(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("price product %d: %w", product.ID, err)
	}

	order := models.Order{
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerAddress: strings.TrimSpace(in.CustomerAddress),
		ProductID:       product.ID,
		Quantity:        in.Quantity,
		Notes:           in.Notes,
		Customization:   in.Customization,
		Status:          models.OrderPending,
	}
	if ok {
		unit := quote.Price
		order.PriceSnapshot = &unit
		order.SilverPriceSnapshot = quote.MetalRate
		order.TotalPrice = orderTotal(order.PriceSnapshot, order.Quantity)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.Product = *product

	receipt := &OrderReceipt{Order: &order}
	if link, err := s.whatsapp.Link(messaging.OrderMessage(&order)); err == nil {
		receipt.WhatsAppURL = link
	} else {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("Order notification link not generated")
	}

	if s.events != nil {
		s.events.OrderCreated()
	}
	return receipt, nil
}

func orderTotal(unit *decimal.Decimal, quantity int) *decimal.Decimal {
	if unit == nil {
		return nil
	}
	total := unit.Mul(decimal.NewFromInt(int64(quantity)))
	return &total
}

type OrderPagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
	HasNext     bool  `json:"hasNext"`
	Limit       int   `json:"limit"`
}

type OrderPage struct {
	Orders     []models.Order  `json:"orders"`
	Pagination OrderPagination `json:"pagination"`
}

// ListOrders pages orders newest first, optionally by status.
func (s *Service) ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*OrderPage, error) {
	if status != "" && !status.Valid() {
		return nil, invalidf("unknown order status %q", status)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	scope := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Order{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	orders := make([]models.Order, 0, limit)
	if err := scope().Preload("Product", models.WithDeleted).Preload("Product.Category").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &OrderPage{
		Orders: orders,
		Pagination: OrderPagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalOrders: total,
			HasNext:     page < totalPages,
			Limit:       limit,
		},
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Product", models.WithDeleted).Preload("Product.Category").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type OrderUpdate struct {
	Status   models.OrderStatus `json:"status"`
	Quantity int                `json:"quantity"`
}

// UpdateOrder changes status and/or quantity. The unit snapshot is kept;
// a new quantity recomputes the total from it.
func (s *Service) UpdateOrder(ctx context.Context, id uint, in OrderUpdate) (*models.Order, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, invalidf("unknown order status %q", in.Status)
	}
	if in.Quantity != 0 && (in.Quantity < 1 || in.Quantity > MaxQuantity) {
		return nil, invalidf("quantity must be between 1 and %d", MaxQuantity)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Status != "" {
		order.Status = in.Status
		updates["status"] = in.Status
	}
	if in.Quantity != 0 {
		order.Quantity = in.Quantity
		order.TotalPrice = orderTotal(order.PriceSnapshot, in.Quantity)
		updates["quantity"] = in.Quantity
		updates["total_price"] = order.TotalPrice
	}
	if len(updates) == 0 {
		return order, nil
	}

	if err := s.db.WithContext(ctx).Model(order).Omit(clause.Associations).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update order %d: %w", id, err)
	}
	return order, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Order{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
