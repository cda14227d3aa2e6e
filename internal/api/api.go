package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"welcome-craft/internal/auth"
	"welcome-craft/internal/cart"
	"welcome-craft/internal/catalog"
	"welcome-craft/internal/ledger"
	"welcome-craft/internal/messaging"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"
	"welcome-craft/internal/scraper"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PriceUpdater is one metal's update pipeline.
type PriceUpdater interface {
	FetchAndSavePrice(ctx context.Context) (*pricing.UpdateResult, error)
	Preview(ctx context.Context) (*scraper.Result, error)
}

type Deps struct {
	Updaters  map[models.Metal]PriceUpdater
	Ledger    *ledger.Ledger
	Catalog   *catalog.Service
	Carts     *cart.Service
	JWTSecret string
	Log       *logrus.Entry
}

type APIHandler struct {
	updaters map[models.Metal]PriceUpdater
	ledger   *ledger.Ledger
	catalog  *catalog.Service
	carts    *cart.Service
	log      *logrus.Entry
}

func SetupRoutes(r *gin.RouterGroup, deps Deps) *APIHandler {
	handler := &APIHandler{
		updaters: deps.Updaters,
		ledger:   deps.Ledger,
		catalog:  deps.Catalog,
		carts:    deps.Carts,
		log:      deps.Log,
	}
	if handler.log == nil {
		handler.log = logrus.NewEntry(logrus.StandardLogger())
	}
	admin := auth.RequireRole(deps.JWTSecret, auth.RoleAdmin)

	// One static group per metal, e.g. /api/silver/today
	for _, metal := range models.Metals {
		prices := r.Group("/"+string(metal), withMetal(metal))
		{
			prices.GET("/today", handler.GetLatestPrice)
			prices.GET("/history", handler.GetPriceHistory)
			prices.GET("/history/export", admin, handler.ExportPriceHistory)
			prices.POST("/update", admin, handler.TriggerUpdate)
			prices.GET("/test-scrape", admin, handler.TestScrape)
		}
	}

	r.GET("/categories", handler.ListCategories)
	r.POST("/categories", admin, handler.CreateCategory)

	products := r.Group("/products")
	{
		products.GET("", handler.ListProducts)
		products.GET("/:id", handler.GetProduct)
		products.POST("", admin, handler.CreateProduct)
		products.DELETE("/:id", admin, handler.DeleteProduct)
	}

	carts := r.Group("/cart/:sessionId")
	{
		carts.GET("", handler.GetCart)
		carts.POST("/add", handler.AddToCart)
		carts.PUT("/item/:itemId", handler.UpdateCartItem)
		carts.DELETE("/item/:itemId", handler.RemoveCartItem)
		carts.DELETE("", handler.ClearCart)
		carts.PUT("/customer", handler.UpdateCustomerInfo)
		carts.POST("/checkout", handler.Checkout)
	}

	orders := r.Group("/orders")
	{
		orders.POST("", handler.CreateOrder)
		orders.GET("", admin, handler.ListOrders)
		orders.GET("/:orderId", admin, handler.GetOrder)
		orders.PUT("/:orderId", admin, handler.UpdateOrder)
		orders.PUT("/:orderId/status", admin, handler.UpdateOrderStatus)
		orders.DELETE("/:orderId", admin, handler.DeleteOrder)
	}

	return handler
}

// respondError maps service errors onto status codes. Anything unknown is a 500.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, cart.ErrProductNotFound),
		errors.Is(err, cart.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, cart.ErrInvalid),
		errors.Is(err, cart.ErrEmptyCart):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, messaging.ErrPhoneNotConfigured):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

const metalKey = "api.metal"

func withMetal(metal models.Metal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metalKey, metal)
		c.Next()
	}
}

func (h *APIHandler) metalParam(c *gin.Context) (models.Metal, bool) {
	metal, ok := c.Get(metalKey)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown metal"})
		return "", false
	}
	return metal.(models.Metal), true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func pageQuery(c *gin.Context, defaultLimit int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	return page, limit
}
