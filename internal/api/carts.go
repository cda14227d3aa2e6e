package api

import (
	"net/http"

	"welcome-craft/internal/cart"

	"github.com/gin-gonic/gin"
)

func (h *APIHandler) GetCart(c *gin.Context) {
	out, err := h.carts.GetCart(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) AddToCart(c *gin.Context) {
	var in cart.AddItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	out, err := h.carts.AddItem(c.Request.Context(), c.Param("sessionId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) UpdateCartItem(c *gin.Context) {
	var in cart.UpdateItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	out, err := h.carts.UpdateItem(c.Request.Context(), c.Param("sessionId"), c.Param("itemId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) RemoveCartItem(c *gin.Context) {
	out, err := h.carts.RemoveItem(c.Request.Context(), c.Param("sessionId"), c.Param("itemId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) ClearCart(c *gin.Context) {
	out, err := h.carts.Clear(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) UpdateCustomerInfo(c *gin.Context) {
	var in cart.CustomerInfo
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	out, err := h.carts.UpdateCustomerInfo(c.Request.Context(), c.Param("sessionId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Checkout returns the WhatsApp deep link for the cart and closes it.
func (h *APIHandler) Checkout(c *gin.Context) {
	out, err := h.carts.Checkout(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
