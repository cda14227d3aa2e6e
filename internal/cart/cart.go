// Package cart implements session carts and single-product orders.
//
// Every line and order carries the price resolved when the shopper last
// touched it. Later ledger changes never rewrite an existing snapshot.
package cart

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"welcome-craft/internal/messaging"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxQuantity = 100

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalid         = errors.New("invalid input")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]{10,20}$`)

// Quoter resolves the current price of a product.
type Quoter interface {
	Quote(ctx context.Context, p *models.Product) (pricing.Quote, bool, error)
}

// Events is notified of completed checkouts and orders.
type Events interface {
	OrderCreated()
	CartCheckedOut()
}

type Service struct {
	db       *gorm.DB
	quoter   Quoter
	whatsapp *messaging.WhatsApp
	ttl      time.Duration
	now      func() time.Time
	events   Events
	log      *logrus.Entry
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

func NewService(db *gorm.DB, quoter Quoter, whatsapp *messaging.WhatsApp, opts ...Option) *Service {
	s := &Service{
		db:       db,
		quoter:   quoter,
		whatsapp: whatsapp,
		ttl:      7 * 24 * time.Hour,
		now:      time.Now,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock is the service time in UTC; every stored timestamp is UTC.
func (s *Service) clock() time.Time { return s.now().UTC() }

// open carts accept changes; ordered and abandoned carts are history.
var openStatuses = []models.CartStatus{models.CartActive, models.CartCheckout}

func loadCart(tx *gorm.DB, sessionID string) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Where("session_id = ? AND status IN ?", sessionID, openStatuses).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC, id ASC") }).
		Preload("Items.Product", models.WithDeleted).
		Preload("Items.Product.Category").
		Order("id DESC").
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	cart.Recalculate()
	return &cart, nil
}

func (s *Service) loadOrCreate(tx *gorm.DB, sessionID string) (*models.Cart, error) {
	cart, err := loadCart(tx, sessionID)
	if !errors.Is(err, ErrCartNotFound) {
		return cart, err
	}
	cart = &models.Cart{
		SessionID: sessionID,
		Status:    models.CartActive,
		ExpiresAt: s.clock().Add(s.ttl),
	}
	if err := tx.Create(cart).Error; err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	cart.Items = []models.CartItem{}
	return cart, nil
}

// GetCart returns the session's open cart, creating an empty one if needed.
func (s *Service) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalidf("session id is required")
	}
	return s.loadOrCreate(s.db.WithContext(ctx), sessionID)
}

func (s *Service) product(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Preload("Category").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// snapshot freezes q onto a line. An unresolvable quote leaves the line unpriced.
func snapshot(item *models.CartItem, q pricing.Quote, ok bool, at time.Time) {
	item.PriceSnapshot, item.SilverPriceSnapshot = nil, nil
	if ok {
		price := q.Price
		item.PriceSnapshot = &price
		item.SilverPriceSnapshot = q.MetalRate
	}
	item.PricedAt = at
}

// saveTotals folds the lines and persists the derived totals.
func (s *Service) saveTotals(tx *gorm.DB, cart *models.Cart) error {
	cart.Recalculate()
	cart.ExpiresAt = s.clock().Add(s.ttl)
	return tx.Model(cart).Omit(clause.Associations).Updates(map[string]interface{}{
		"subtotal":    cart.Subtotal,
		"total_items": cart.TotalItems,
		"expires_at":  cart.ExpiresAt,
	}).Error
}

type AddItemInput struct {
	ProductID     uint                  `json:"productId" binding:"required"`
	Quantity      int                   `json:"quantity"`
	Customization *models.Customization `json:"customization"`
}

// AddItem adds a product, merging into an existing line of the same product.
// Only that line is re-priced.
func (s *Service) AddItem(ctx context.Context, sessionID string, in AddItemInput) (*models.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalidf("session id is required")
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
	now := s.clock()

	var out *models.Cart
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.loadOrCreate(tx, sessionID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range cart.Items {
			if cart.Items[i].ProductID == product.ID {
				idx = i
				break
			}
		}

		if idx >= 0 {
			item := &cart.Items[idx]
			if item.Quantity+in.Quantity > MaxQuantity {
				return invalidf("quantity cannot exceed %d", MaxQuantity)
			}
			item.Quantity += in.Quantity
			if in.Customization != nil {
				item.Customization = in.Customization
			}
			snapshot(item, quote, ok, now)
			if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
				return err
			}
		} else {
			item := models.CartItem{
				ItemID:        uuid.New().String(),
				CartID:        cart.ID,
				ProductID:     product.ID,
				Quantity:      in.Quantity,
				Customization: in.Customization,
				AddedAt:       now,
			}
			snapshot(&item, quote, ok, now)
			if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
				return err
			}
			item.Product = *product
			cart.Items = append(cart.Items, item)
		}

		if err := s.saveTotals(tx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type UpdateItemInput struct {
	Quantity      *int                  `json:"quantity"`
	Customization *models.Customization `json:"customization"`
}

// UpdateItem changes one line and re-prices it. Quantity 0 removes the line.
// Other lines keep their snapshots.
func (s *Service) UpdateItem(ctx context.Context, sessionID, itemID string, in UpdateItemInput) (*models.Cart, error) {
	if in.Quantity != nil && (*in.Quantity < 0 || *in.Quantity > MaxQuantity) {
		return nil, invalidf("quantity must be between 0 and %d", MaxQuantity)
	}
	if in.Quantity != nil && *in.Quantity == 0 {
		return s.RemoveItem(ctx, sessionID, itemID)
	}

	current, err := loadCart(s.db.WithContext(ctx), sessionID)
	if err != nil {
		return nil, err
	}
	line := findItem(current, itemID)
	if line == nil {
		return nil, ErrItemNotFound
	}
	quote, ok, err := s.quoter.Quote(ctx, &line.Product)
	if err != nil {
		return nil, fmt.Errorf("price product %d: %w", line.ProductID, err)
	}

	var out *models.Cart
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, sessionID)
		if err != nil {
			return err
		}
		item := findItem(cart, itemID)
		if item == nil {
			return ErrItemNotFound
		}

		if in.Quantity != nil {
			item.Quantity = *in.Quantity
		}
		if in.Customization != nil {
			item.Customization = in.Customization
		}
		snapshot(item, quote, ok, s.clock())
		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return err
		}

		if err := s.saveTotals(tx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func findItem(cart *models.Cart, itemID string) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ItemID == itemID {
			return &cart.Items[i]
		}
	}
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, itemID string) (*models.Cart, error) {
	var out *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, sessionID)
		if err != nil {
			return err
		}
		item := findItem(cart, itemID)
		if item == nil {
			return ErrItemNotFound
		}
		if err := tx.Delete(&models.CartItem{}, item.ID).Error; err != nil {
			return err
		}

		kept := cart.Items[:0]
		for _, it := range cart.Items {
			if it.ItemID != itemID {
				kept = append(kept, it)
			}
		}
		cart.Items = kept

		if err := s.saveTotals(tx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear empties the session's open cart.
func (s *Service) Clear(ctx context.Context, sessionID string) (*models.Cart, error) {
	var out *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, sessionID)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		cart.Items = []models.CartItem{}
		if err := s.saveTotals(tx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type CustomerInfo struct {
	Name    string `json:"customerName"`
	Phone   string `json:"customerPhone"`
	Email   string `json:"customerEmail"`
	Address string `json:"customerAddress"`
	Notes   string `json:"orderNotes"`
}

func (c CustomerInfo) validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Phone) == "" {
		return invalidf("customer name and phone are required")
	}
	if len(c.Name) > 100 {
		return invalidf("customer name is too long")
	}
	if !phonePattern.MatchString(strings.TrimSpace(c.Phone)) {
		return invalidf("customer phone %q is not a valid number", c.Phone)
	}
	return nil
}

// UpdateCustomerInfo records contact details and moves the cart to checkout.
func (s *Service) UpdateCustomerInfo(ctx context.Context, sessionID string, info CustomerInfo) (*models.Cart, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}

	var out *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, sessionID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		cart.CustomerName = strings.TrimSpace(info.Name)
		cart.CustomerPhone = strings.TrimSpace(info.Phone)
		cart.CustomerEmail = strings.TrimSpace(info.Email)
		cart.CustomerAddress = strings.TrimSpace(info.Address)
		cart.OrderNotes = info.Notes
		cart.Status = models.CartCheckout

		err = tx.Model(cart).Omit(clause.Associations).Updates(map[string]interface{}{
			"customer_name":    cart.CustomerName,
			"customer_phone":   cart.CustomerPhone,
			"customer_email":   cart.CustomerEmail,
			"customer_address": cart.CustomerAddress,
			"order_notes":      cart.OrderNotes,
			"status":           cart.Status,
		}).Error
		if err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type CheckoutResult struct {
	WhatsAppURL      string          `json:"whatsappUrl"`
	TotalItems       int             `json:"totalItems"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	HasUnpricedItems bool            `json:"hasUnpricedItems"`
	CustomerName     string          `json:"customerName,omitempty"`
	CustomerPhone    string          `json:"customerPhone,omitempty"`
}

// Checkout builds the WhatsApp order link from the frozen line prices and
// closes the cart.
func (s *Service) Checkout(ctx context.Context, sessionID string) (*CheckoutResult, error) {
	var out *CheckoutResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, sessionID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		link, err := s.whatsapp.Link(messaging.CartMessage(cart, s.clock()))
		if err != nil {
			return err
		}

		if err := tx.Model(cart).Omit(clause.Associations).Update("status", models.CartOrdered).Error; err != nil {
			return err
		}

		out = &CheckoutResult{
			WhatsAppURL:      link,
			TotalItems:       cart.TotalItems,
			Subtotal:         cart.Subtotal,
			HasUnpricedItems: cart.HasUnpricedItems,
			CustomerName:     cart.CustomerName,
			CustomerPhone:    cart.CustomerPhone,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.CartCheckedOut()
	}
	return out, nil
}

// ExpireStale marks open carts past their expiry as abandoned.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("status IN ? AND expires_at < ?", openStatuses, s.clock()).
		Update("status", models.CartAbandoned)
	if res.Error != nil {
		return 0, fmt.Errorf("expire carts: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.WithField("carts", res.RowsAffected).Info("Expired stale carts")
	}
	return res.RowsAffected, nil
}
