package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"welcome-craft/internal/auth"
	"welcome-craft/internal/cart"
	"welcome-craft/internal/catalog"
	"welcome-craft/internal/database"
	"welcome-craft/internal/ledger"
	"welcome-craft/internal/messaging"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"
	"welcome-craft/internal/scraper"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type fakeUpdater struct {
	result *pricing.UpdateResult
	err    error
	calls  int
}

func (f *fakeUpdater) FetchAndSavePrice(context.Context) (*pricing.UpdateResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeUpdater) Preview(context.Context) (*scraper.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.Result{Metal: f.result.Metal, Price: f.result.Price, ScrapedAt: f.result.ScrapedAt}, nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	ledger *ledger.Ledger
	silver *fakeUpdater
	admin  string
}

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory(t.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	l := ledger.New(db, ledger.WithLogger(quietLog()))
	silver := &fakeUpdater{result: &pricing.UpdateResult{
		Metal: models.MetalSilver, Price: decimal.NewFromInt(1905), Saved: true, DailyChange: "+15",
		Outcome: ledger.OutcomeCreated, ScrapedAt: time.Now().UTC(),
	}}

	r := gin.New()
	SetupRoutes(r.Group("/api"), Deps{
		Updaters:  map[models.Metal]PriceUpdater{models.MetalSilver: silver},
		Ledger:    l,
		Catalog:   catalog.NewService(db),
		Carts:     cart.NewService(db, pricing.NewQuoter(l), messaging.NewWhatsApp("+977 980-0000000"), cart.WithLogger(quietLog())),
		JWTSecret: testSecret,
		Log:       quietLog(),
	})

	token, err := auth.IssueToken(testSecret, "owner", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{router: r, db: db, ledger: l, silver: silver, admin: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.admin)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func (s *testServer) seedSilver(t *testing.T, price string) {
	t.Helper()
	if _, err := s.ledger.UpsertDailyPrice(context.Background(), models.MetalSilver, decimal.RequireFromString(price), time.Now(), ""); err != nil {
		t.Fatal(err)
	}
}

func TestTriggerUpdate(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodPost, "/api/silver/update", nil, false); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/silver/update", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Message string `json:"message"`
		Result  struct {
			Price       decimal.Decimal `json:"price"`
			Saved       bool            `json:"saved"`
			DailyChange string          `json:"dailyChange"`
		} `json:"result"`
	}
	decode(t, w, &out)
	if !out.Result.Saved || !out.Result.Price.Equal(decimal.NewFromInt(1905)) || out.Result.DailyChange != "+15" {
		t.Errorf("unexpected result %+v", out.Result)
	}

	// no scraper wired for gold in this server
	if w := s.do(t, http.MethodPost, "/api/gold/update", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unwired metal, got %d", w.Code)
	}
}

func TestTriggerUpdate_ScrapeFailure(t *testing.T) {
	s := newTestServer(t)
	s.silver.err = &scraper.ParseError{Metal: models.MetalSilver, Selector: "silver-row", Detail: "row not found"}

	w := s.do(t, http.MethodPost, "/api/silver/update", nil, true)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["message"] == "" || out["error"] == "" {
		t.Errorf("expected message and error, got %v", out)
	}

	w = s.do(t, http.MethodGet, "/api/silver/test-scrape", nil, true)
	decode(t, w, &out)
	if w.Code != http.StatusInternalServerError || out["kind"] != "parse" || out["selector"] != "silver-row" {
		t.Errorf("unexpected test-scrape failure response %d %v", w.Code, out)
	}
}

func TestLatestAndHistory(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/api/silver/today", nil, false); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any record, got %d", w.Code)
	}

	s.seedSilver(t, "1905")

	w := s.do(t, http.MethodGet, "/api/silver/today", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rec models.MetalPrice
	decode(t, w, &rec)
	if !rec.PricePerTola.Equal(decimal.NewFromInt(1905)) {
		t.Errorf("unexpected latest %s", rec.PricePerTola)
	}

	w = s.do(t, http.MethodGet, "/api/silver/history?page=1&limit=10", nil, false)
	var page ledger.HistoryPage
	decode(t, w, &page)
	if len(page.History) != 1 || page.Pagination.TotalRecords != 1 || page.Pagination.HasNext {
		t.Errorf("unexpected history page %+v", page)
	}
}

func TestExportPriceHistory(t *testing.T) {
	s := newTestServer(t)
	s.seedSilver(t, "1905")

	if w := s.do(t, http.MethodGet, "/api/silver/history/export", nil, false); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/silver/history/export", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/vnd.openxmlformats") {
		t.Errorf("unexpected content type %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty workbook")
	}

	if w := s.do(t, http.MethodGet, "/api/silver/history/export?from=yesterday", nil, true); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", w.Code)
	}
}

type productResponse struct {
	ID             uint             `json:"id"`
	Title          string           `json:"title"`
	CurrentPrice   *decimal.Decimal `json:"current_price"`
	PriceRange     *pricing.Range   `json:"price_range"`
	PriceOnRequest bool             `json:"price_on_request"`
}

func TestProducts_PricedFromLedger(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/categories", catalog.CategoryInput{Name: "Silver Crafts", Type: models.CategorySilver}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", w.Code, w.Body.String())
	}
	var category models.Category
	decode(t, w, &category)

	if w := s.do(t, http.MethodPost, "/api/categories", catalog.CategoryInput{Name: "Silver Crafts"}, true); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate category, got %d", w.Code)
	}

	two, making := decimal.NewFromInt(2), decimal.NewFromInt(300)
	w = s.do(t, http.MethodPost, "/api/products", catalog.ProductInput{
		Title: "Silver Bowl", CategoryID: category.ID, WeightInTola: &two, MakingCost: &making,
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create product: %d %s", w.Code, w.Body.String())
	}
	var created productResponse
	decode(t, w, &created)
	if !created.PriceOnRequest {
		t.Error("expected price on request before any silver price")
	}

	if w := s.do(t, http.MethodPost, "/api/products", catalog.ProductInput{Title: "Bad", CategoryID: category.ID}, true); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for silver product without weight, got %d", w.Code)
	}

	s.seedSilver(t, "1000")

	w = s.do(t, http.MethodGet, "/api/products", nil, false)
	var list []productResponse
	decode(t, w, &list)
	if len(list) != 1 || list[0].CurrentPrice == nil || !list[0].CurrentPrice.Equal(decimal.NewFromInt(2300)) || list[0].PriceOnRequest {
		t.Fatalf("unexpected product list %+v", list)
	}

	if w := s.do(t, http.MethodGet, "/api/products/9999", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCartAndCheckout(t *testing.T) {
	s := newTestServer(t)
	s.seedSilver(t, "1000")

	category := models.Category{Name: "Silver Crafts", Type: models.CategorySilver}
	s.db.Create(&category)
	two, making := decimal.NewFromInt(2), decimal.NewFromInt(300)
	bowl := models.Product{Title: "Silver Bowl", CategoryID: category.ID, WeightInTola: &two, MakingCost: &making}
	s.db.Omit("Category").Create(&bowl)

	w := s.do(t, http.MethodPost, "/api/cart/sess-1/add", cart.AddItemInput{ProductID: bowl.ID, Quantity: 2}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}
	var c models.Cart
	decode(t, w, &c)
	if len(c.Items) != 1 || !c.Subtotal.Equal(decimal.NewFromInt(4600)) {
		t.Fatalf("unexpected cart %+v", c)
	}

	if w := s.do(t, http.MethodPost, "/api/cart/sess-1/add", cart.AddItemInput{ProductID: 424242}, false); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown product, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/cart/sess-1/item/nope", map[string]int{"quantity": 1}, false); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown item, got %d", w.Code)
	}

	w = s.do(t, http.MethodPut, "/api/cart/sess-1/customer", cart.CustomerInfo{Name: "Tenzin", Phone: "+977 9800000001"}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("customer: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/cart/sess-1/checkout", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", w.Code, w.Body.String())
	}
	var out cart.CheckoutResult
	decode(t, w, &out)
	if out.WhatsAppURL == "" || out.TotalItems != 2 {
		t.Errorf("unexpected checkout %+v", out)
	}

	// the ordered cart is closed
	if w := s.do(t, http.MethodPost, "/api/cart/sess-1/checkout", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after checkout, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/cart/sess-2/checkout", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a session without a cart, got %d", w.Code)
	}
	s.do(t, http.MethodGet, "/api/cart/sess-2", nil, false)
	if w := s.do(t, http.MethodPost, "/api/cart/sess-2/checkout", nil, false); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty cart, got %d", w.Code)
	}
}

func TestOrders(t *testing.T) {
	s := newTestServer(t)

	category := models.Category{Name: "Statues", Type: models.CategoryOther}
	s.db.Create(&category)
	price := decimal.NewFromInt(5000)
	thangka := models.Product{Title: "Thangka", CategoryID: category.ID, ConstantPrice: &price}
	s.db.Omit("Category").Create(&thangka)

	w := s.do(t, http.MethodPost, "/api/orders", cart.OrderInput{
		CustomerName: "Pema", CustomerPhone: "+977 9800000002", ProductID: thangka.ID, Quantity: 2,
	}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	var receipt struct {
		Order       models.Order `json:"order"`
		WhatsAppURL string       `json:"whatsappUrl"`
	}
	decode(t, w, &receipt)
	if receipt.Order.TotalPrice == nil || !receipt.Order.TotalPrice.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("unexpected total %v", receipt.Order.TotalPrice)
	}

	if w := s.do(t, http.MethodGet, "/api/orders", nil, false); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for order list without token, got %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/orders?status=pending", nil, true)
	var page cart.OrderPage
	decode(t, w, &page)
	if len(page.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(page.Orders))
	}

	path := "/api/orders/" + strconv.FormatUint(uint64(receipt.Order.ID), 10)
	w = s.do(t, http.MethodPut, path+"/status", map[string]string{"status": "confirmed"}, true)
	var updated models.Order
	decode(t, w, &updated)
	if w.Code != http.StatusOK || updated.Status != models.OrderConfirmed {
		t.Errorf("unexpected status update %d %s", w.Code, updated.Status)
	}
	if w := s.do(t, http.MethodPut, path+"/status", map[string]string{"status": "shipped"}, true); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", w.Code)
	}

	if w := s.do(t, http.MethodDelete, path, nil, true); w.Code != http.StatusOK {
		t.Errorf("delete: %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, path, nil, true); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}
