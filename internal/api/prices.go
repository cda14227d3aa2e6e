package api

import (
	"errors"
	"net/http"
	"time"

	"welcome-craft/internal/export"
	"welcome-craft/internal/localtime"
	"welcome-craft/internal/scraper"

	"github.com/gin-gonic/gin"
)

// GetLatestPrice: GET /api/:metal/today
func (h *APIHandler) GetLatestPrice(c *gin.Context) {
	metal, ok := h.metalParam(c)
	if !ok {
		return
	}
	rec, err := h.ledger.GetLatestPrice(c.Request.Context(), metal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "No " + string(metal) + " price recorded yet"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetPriceHistory: GET /api/:metal/history?page=1&limit=30
func (h *APIHandler) GetPriceHistory(c *gin.Context) {
	metal, ok := h.metalParam(c)
	if !ok {
		return
	}
	page, limit := pageQuery(c, 30)
	out, err := h.ledger.GetPriceHistory(c.Request.Context(), metal, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ExportPriceHistory: GET /api/:metal/history/export?from=2024-03-01&to=2024-03-31
// Defaults to the last 30 local days.
func (h *APIHandler) ExportPriceHistory(c *gin.Context) {
	metal, ok := h.metalParam(c)
	if !ok {
		return
	}

	now := time.Now()
	from, err := dateQuery(c, "from", now.AddDate(0, 0, -29))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := dateQuery(c, "to", now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid to date, expected YYYY-MM-DD"})
		return
	}

	records, err := h.ledger.Between(c.Request.Context(), metal, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	data, err := export.PriceHistoryWorkbook(metal, records)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(metal, now)+`"`)
	c.Data(http.StatusOK, export.ContentType, data)
}

func dateQuery(c *gin.Context, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return time.ParseInLocation("2006-01-02", v, localtime.Zone)
}

// TriggerUpdate: POST /api/:metal/update
func (h *APIHandler) TriggerUpdate(c *gin.Context) {
	metal, ok := h.metalParam(c)
	if !ok {
		return
	}
	updater, ok := h.updaters[metal]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no scraper configured for " + string(metal)})
		return
	}

	res, err := updater.FetchAndSavePrice(c.Request.Context())
	if err != nil {
		h.log.WithError(err).WithField("metal", metal).WithField("kind", scraper.Kind(err)).Error("Manual price update failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Failed to update " + string(metal) + " price",
			"error":   err.Error(),
		})
		return
	}

	msg := string(metal) + " price unchanged"
	if res.Saved {
		msg = string(metal) + " price updated successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "result": res})
}

// TestScrape: GET /api/:metal/test-scrape, scrapes without saving.
func (h *APIHandler) TestScrape(c *gin.Context) {
	metal, ok := h.metalParam(c)
	if !ok {
		return
	}
	updater, ok := h.updaters[metal]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no scraper configured for " + string(metal)})
		return
	}

	res, err := updater.Preview(c.Request.Context())
	if err != nil {
		var pe *scraper.ParseError
		body := gin.H{"message": "Scrape failed", "kind": scraper.Kind(err), "error": err.Error()}
		if errors.As(err, &pe) {
			body["selector"] = pe.Selector
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}
