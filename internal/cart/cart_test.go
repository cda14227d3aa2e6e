package cart

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"welcome-craft/internal/database"
	"welcome-craft/internal/ledger"
	"welcome-craft/internal/localtime"
	"welcome-craft/internal/messaging"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type fixture struct {
	now    time.Time
	db     *gorm.DB
	ledger *ledger.Ledger
	svc    *Service

	silverBowl models.Product // 2 tola + 300 making
	thangka    models.Product // constant 5000
	statue     models.Product // priced on request
}

func (f *fixture) Now() time.Time { return f.now }

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{now: time.Date(2024, 3, 10, 6, 0, 0, 0, localtime.Zone), db: db}
	f.ledger = ledger.New(db, ledger.WithClock(f.Now), ledger.WithLogger(quietLog()))
	f.svc = NewService(db, pricing.NewQuoter(f.ledger), messaging.NewWhatsApp("9779800000000"),
		WithClock(f.Now), WithLogger(quietLog()))

	silver := models.Category{Name: "Silver Crafts", Type: models.CategorySilver}
	other := models.Category{Name: "Statues", Type: models.CategoryOther}
	if err := db.Create(&silver).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}

	f.silverBowl = models.Product{Title: "Silver Bowl", CategoryID: silver.ID, WeightInTola: dec("2"), MakingCost: dec("300")}
	f.thangka = models.Product{Title: "Thangka", CategoryID: other.ID, ConstantPrice: dec("5000")}
	f.statue = models.Product{Title: "Bronze Statue", CategoryID: other.ID}
	for _, p := range []*models.Product{&f.silverBowl, &f.thangka, &f.statue} {
		if err := db.Omit("Category").Create(p).Error; err != nil {
			t.Fatal(err)
		}
	}

	f.setSilver(t, "1000")
	return f
}

func (f *fixture) setSilver(t *testing.T, price string) {
	t.Helper()
	f.now = f.now.Add(time.Minute)
	w, err := f.ledger.UpsertDailyPrice(context.Background(), models.MetalSilver, *dec(price), f.now, "")
	if err != nil {
		t.Fatal(err)
	}
	if !w.Outcome.Saved() {
		t.Fatalf("expected silver %s to be saved", price)
	}
}

func line(t *testing.T, c *models.Cart, productID uint) models.CartItem {
	t.Helper()
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("no line for product %d", productID)
	return models.CartItem{}
}

func assertDec(t *testing.T, what string, got *decimal.Decimal, want string) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want %s", what, want)
		return
	}
	if !got.Equal(*dec(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func TestSnapshotSurvivesPriceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := "sess-1"

	c, err := f.svc.AddItem(ctx, session, AddItemInput{ProductID: f.silverBowl.ID, Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	bowl := line(t, c, f.silverBowl.ID)
	assertDec(t, "bowl snapshot", bowl.PriceSnapshot, "2300")
	assertDec(t, "bowl silver snapshot", bowl.SilverPriceSnapshot, "1000")

	if _, err := f.svc.AddItem(ctx, session, AddItemInput{ProductID: f.thangka.ID}); err != nil {
		t.Fatal(err)
	}

	f.setSilver(t, "1100")

	c, err = f.svc.GetCart(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	assertDec(t, "bowl snapshot after rate change", line(t, c, f.silverBowl.ID).PriceSnapshot, "2300")
	if !c.Subtotal.Equal(*dec("7300")) {
		t.Errorf("subtotal = %s, want 7300", c.Subtotal)
	}

	// touching another line leaves the bowl alone
	c, err = f.svc.AddItem(ctx, session, AddItemInput{ProductID: f.thangka.ID})
	if err != nil {
		t.Fatal(err)
	}
	assertDec(t, "bowl snapshot after other line changed", line(t, c, f.silverBowl.ID).PriceSnapshot, "2300")
	if got := line(t, c, f.thangka.ID).Quantity; got != 2 {
		t.Errorf("thangka lines must merge, got quantity %d", got)
	}

	c, err = f.svc.UpdateItem(ctx, session, bowl.ItemID, UpdateItemInput{Quantity: intPtr(2)})
	if err != nil {
		t.Fatal(err)
	}
	updated := line(t, c, f.silverBowl.ID)
	assertDec(t, "bowl snapshot after update", updated.PriceSnapshot, "2500")
	assertDec(t, "bowl silver snapshot after update", updated.SilverPriceSnapshot, "1100")
	if !c.Subtotal.Equal(*dec("15000")) || c.TotalItems != 4 {
		t.Errorf("totals = %s / %d, want 15000 / 4", c.Subtotal, c.TotalItems)
	}

	var stored models.Cart
	if err := f.db.First(&stored, c.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !stored.Subtotal.Equal(*dec("15000")) {
		t.Errorf("persisted subtotal = %s, want 15000", stored.Subtotal)
	}
}

func intPtr(n int) *int { return &n }

func TestUnpricedLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.thangka.ID}); err != nil {
		t.Fatal(err)
	}
	c, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.statue.ID, Quantity: 3})
	if err != nil {
		t.Fatal(err)
	}

	st := line(t, c, f.statue.ID)
	if st.PriceSnapshot != nil {
		t.Errorf("statue must be priced on request, got %s", st.PriceSnapshot)
	}
	if !c.Subtotal.Equal(*dec("5000")) || c.TotalItems != 4 || !c.HasUnpricedItems {
		t.Errorf("unexpected totals %s / %d / %v", c.Subtotal, c.TotalItems, c.HasUnpricedItems)
	}
}

func TestNoSilverPriceYet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.db.Where("1 = 1").Delete(&models.MetalPrice{}).Error; err != nil {
		t.Fatal(err)
	}

	c, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.silverBowl.ID})
	if err != nil {
		t.Fatal(err)
	}
	if line(t, c, f.silverBowl.ID).PriceSnapshot != nil || !c.HasUnpricedItems {
		t.Error("silver item without a ledger price must be unpriced, not zero")
	}
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: 9999}); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected product not found, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.thangka.ID, Quantity: 101}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected invalid quantity, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, "", AddItemInput{ProductID: f.thangka.ID}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected invalid session, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.thangka.ID, Quantity: 60}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.thangka.ID, Quantity: 60}); !errors.Is(err, ErrInvalid) {
		t.Errorf("merged quantity above the cap must fail, got %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.thangka.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.silverBowl.ID}); err != nil {
		t.Fatal(err)
	}

	itemID := line(t, c, f.thangka.ID).ItemID
	c, err = f.svc.UpdateItem(ctx, "s", itemID, UpdateItemInput{Quantity: intPtr(0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 1 || !c.Subtotal.Equal(*dec("2300")) {
		t.Errorf("quantity 0 must remove the line, got %d lines, subtotal %s", len(c.Items), c.Subtotal)
	}

	if _, err := f.svc.RemoveItem(ctx, "s", itemID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected item not found, got %v", err)
	}

	c, err = f.svc.Clear(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 0 || !c.Subtotal.IsZero() || c.TotalItems != 0 {
		t.Errorf("expected empty cart, got %+v", c)
	}

	if _, err := f.svc.RemoveItem(ctx, "nobody", itemID); !errors.Is(err, ErrCartNotFound) {
		t.Errorf("expected cart not found, got %v", err)
	}
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := &eventCounter{}
	f.svc.events = events

	if _, err := f.svc.UpdateCustomerInfo(ctx, "s", CustomerInfo{Name: "Tenzin", Phone: "9800000000"}); !errors.Is(err, ErrCartNotFound) {
		t.Errorf("expected cart not found before any item, got %v", err)
	}
	if _, err := f.svc.GetCart(ctx, "s"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateCustomerInfo(ctx, "s", CustomerInfo{Name: "Tenzin", Phone: "9800000000"}); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected empty cart, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.silverBowl.ID, Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateCustomerInfo(ctx, "s", CustomerInfo{Name: "Tenzin", Phone: "abc"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected invalid phone, got %v", err)
	}

	c, err := f.svc.UpdateCustomerInfo(ctx, "s", CustomerInfo{Name: "Tenzin", Phone: "+977 9800000000", Address: "Boudha, Kathmandu"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != models.CartCheckout {
		t.Errorf("expected checkout status, got %s", c.Status)
	}

	res, err := f.svc.Checkout(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.WhatsAppURL, "https://wa.me/9779800000000?text=") {
		t.Errorf("unexpected link %s", res.WhatsAppURL)
	}
	if !res.Subtotal.Equal(*dec("4600")) || res.TotalItems != 2 || res.CustomerName != "Tenzin" {
		t.Errorf("unexpected checkout result %+v", res)
	}
	if events.checkouts != 1 {
		t.Errorf("expected one checkout event, got %d", events.checkouts)
	}

	// the ordered cart is closed; the session starts fresh
	fresh, err := f.svc.GetCart(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == c.ID || len(fresh.Items) != 0 {
		t.Errorf("expected a new empty cart, got id %d with %d items", fresh.ID, len(fresh.Items))
	}
}

func TestCheckoutWithoutPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.whatsapp = messaging.NewWhatsApp("")

	if _, err := f.svc.AddItem(ctx, "s", AddItemInput{ProductID: f.thangka.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Checkout(ctx, "s"); !errors.Is(err, messaging.ErrPhoneNotConfigured) {
		t.Fatalf("expected phone error, got %v", err)
	}
	c, err := f.svc.GetCart(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != models.CartActive || len(c.Items) != 1 {
		t.Errorf("failed checkout must leave the cart open, got %s with %d items", c.Status, len(c.Items))
	}
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	f.svc.log = logrus.NewEntry(logger)

	if _, err := f.svc.AddItem(ctx, "old", AddItemInput{ProductID: f.thangka.ID}); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(8 * 24 * time.Hour)
	if _, err := f.svc.AddItem(ctx, "new", AddItemInput{ProductID: f.thangka.ID}); err != nil {
		t.Fatal(err)
	}

	n, err := f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired cart, got %d", n)
	}

	var abandoned int64
	f.db.Model(&models.Cart{}).Where("status = ?", models.CartAbandoned).Count(&abandoned)
	if abandoned != 1 {
		t.Errorf("expected 1 abandoned cart, got %d", abandoned)
	}

	entries := hook.AllEntries()
	if len(entries) != 1 || entries[0].Message != "Expired stale carts" || entries[0].Data["carts"] != int64(1) {
		t.Errorf("expected one expiry log line, got %+v", entries)
	}

	hook.Reset()
	if n, err := f.svc.ExpireStale(ctx); err != nil || n != 0 {
		t.Errorf("expected nothing left to expire, got %d, %v", n, err)
	}
	if len(hook.AllEntries()) != 0 {
		t.Errorf("expected no log line when nothing expired, got %d", len(hook.AllEntries()))
	}
}

type eventCounter struct{ orders, checkouts int }

func (e *eventCounter) OrderCreated()   { e.orders++ }
func (e *eventCounter) CartCheckedOut() { e.checkouts++ }
