package api

import (
	"net/http"
	"strconv"

	"welcome-craft/internal/catalog"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// productView is a product as shoppers see it: either a current price or price on request.
type productView struct {
	models.Product
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty"`
	SilverRate     *decimal.Decimal `json:"silver_rate,omitempty"`
	PriceRange     *pricing.Range   `json:"price_range,omitempty"`
	PriceOnRequest bool             `json:"price_on_request"`
}

// latestSilver never fails the request; shoppers get "price on request" instead.
func (h *APIHandler) latestSilver(c *gin.Context) *models.MetalPrice {
	rec, err := h.ledger.GetLatestPrice(c.Request.Context(), models.MetalSilver)
	if err != nil {
		h.log.WithError(err).Warn("Latest silver price unavailable, pricing on request")
		return nil
	}
	return rec
}

func priced(p models.Product, silver *models.MetalPrice) productView {
	view := productView{Product: p}
	if q, ok := pricing.Resolve(&p, silver); ok {
		price := q.Price
		view.CurrentPrice = &price
		view.SilverRate = q.MetalRate
	} else {
		view.PriceOnRequest = true
	}
	if r, ok := pricing.ResolveRange(&p, silver); ok {
		view.PriceRange = &r
		view.PriceOnRequest = false
	}
	return view
}

func (h *APIHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *APIHandler) CreateCategory(c *gin.Context) {
	var in catalog.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// ListProducts: GET /api/products?category=3&type=silver&search=buddha
func (h *APIHandler) ListProducts(c *gin.Context) {
	var filter catalog.ProductFilter
	if v := c.Query("category"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid category"})
			return
		}
		filter.CategoryID = uint(id)
	}
	filter.Type = models.CategoryType(c.Query("type"))
	filter.Search = c.Query("search")

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	silver := h.latestSilver(c)
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, priced(p, silver))
	}
	c.JSON(http.StatusOK, views)
}

func (h *APIHandler) GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced(*product, h.latestSilver(c)))
}

func (h *APIHandler) CreateProduct(c *gin.Context) {
	var in catalog.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, priced(*product, h.latestSilver(c)))
}

func (h *APIHandler) DeleteProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
