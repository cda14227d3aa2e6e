// Package messaging formats order messages and WhatsApp deep links.
package messaging

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"welcome-craft/internal/localtime"
	"welcome-craft/internal/models"

	"github.com/shopspring/decimal"
)

var ErrPhoneNotConfigured = errors.New("whatsapp phone not configured")

var nonDigits = regexp.MustCompile(`[^0-9]`)

type WhatsApp struct {
	phone string
}

// NewWhatsApp keeps only the digits of phone, e.g. "+977 98-0000" -> "977980000".
func NewWhatsApp(phone string) *WhatsApp {
	return &WhatsApp{phone: nonDigits.ReplaceAllString(phone, "")}
}

func (w *WhatsApp) Configured() bool { return w.phone != "" }

// Link is a wa.me URL that opens a chat with message prefilled.
func (w *WhatsApp) Link(message string) (string, error) {
	if w.phone == "" {
		return "", ErrPhoneNotConfigured
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", w.phone, text), nil
}

func rupees(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}

func categoryName(p models.Product) string {
	if p.Category.Name == "" {
		return "N/A"
	}
	return p.Category.Name
}

// CartMessage lists every line of a cart. Lines without a snapshot are
// marked for a quote and left out of the total.
func CartMessage(cart *models.Cart, at time.Time) string {
	var b strings.Builder
	b.WriteString("🛒 *NEW ORDER FROM WELCOME-CRAFT* 🛒\n\n")

	if cart.CustomerName != "" {
		b.WriteString("👤 *Customer Details:*\n")
		fmt.Fprintf(&b, "Name: %s\n", cart.CustomerName)
		fmt.Fprintf(&b, "Phone: %s\n", cart.CustomerPhone)
		if cart.CustomerEmail != "" {
			fmt.Fprintf(&b, "Email: %s\n", cart.CustomerEmail)
		}
		if cart.CustomerAddress != "" {
			fmt.Fprintf(&b, "Address: %s\n", cart.CustomerAddress)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "📦 *Order Items (%d items):*\n", cart.TotalItems)
	for i, item := range cart.Items {
		fmt.Fprintf(&b, "\n%d. *%s*\n", i+1, item.Product.Title)
		fmt.Fprintf(&b, "   Category: %s\n", categoryName(item.Product))
		fmt.Fprintf(&b, "   Quantity: %d\n", item.Quantity)
		if line, ok := item.LineTotal(); ok {
			fmt.Fprintf(&b, "   Price: %s each\n", rupees(*item.PriceSnapshot))
			fmt.Fprintf(&b, "   Subtotal: %s\n", rupees(line))
		} else {
			b.WriteString("   Price: Please quote\n")
		}
		if c := item.Customization; c != nil {
			if c.Weight != nil {
				fmt.Fprintf(&b, "   *Requested Weight:* %s tola\n", c.Weight.String())
			}
			if c.Notes != "" {
				fmt.Fprintf(&b, "   *Custom Requirements:* %s\n", c.Notes)
			}
		}
	}

	fmt.Fprintf(&b, "\n💰 *Total Amount: %s*\n", rupees(cart.Subtotal))
	if cart.HasUnpricedItems {
		b.WriteString("(items marked \"Please quote\" are not included)\n")
	}
	if cart.OrderNotes != "" {
		fmt.Fprintf(&b, "\n📝 *Order Notes:*\n%s\n", cart.OrderNotes)
	}

	fmt.Fprintf(&b, "\n⏰ Order Time: %s\n", at.In(localtime.Zone).Format("2006-01-02 15:04"))
	b.WriteString("\nPlease confirm this order and provide payment details.\n\nThank you! 🙏")
	return b.String()
}

// OrderMessage is the admin notification for a single-product order.
func OrderMessage(order *models.Order) string {
	var b strings.Builder
	b.WriteString("🛒 *NEW ORDER RECEIVED* 🛒\n\n")
	fmt.Fprintf(&b, "*Order ID:* %d\n", order.ID)
	fmt.Fprintf(&b, "*Date:* %s\n\n", order.CreatedAt.In(localtime.Zone).Format("2006-01-02 15:04"))

	p := order.Product
	b.WriteString("📦 *PRODUCT DETAILS*\n")
	fmt.Fprintf(&b, "*Name:* %s\n", p.Title)
	fmt.Fprintf(&b, "*Category:* %s\n", categoryName(p))
	fmt.Fprintf(&b, "*Quantity:* %d\n", order.Quantity)
	if p.WeightInTola != nil {
		fmt.Fprintf(&b, "*Weight:* %s tola\n", p.WeightInTola.String())
	}
	if p.Height != "" {
		fmt.Fprintf(&b, "*Height:* %s\n", p.Height)
	}
	if c := order.Customization; c != nil {
		if c.Weight != nil {
			fmt.Fprintf(&b, "*Requested Weight:* %s tola\n", c.Weight.String())
		}
		if c.Notes != "" {
			fmt.Fprintf(&b, "*Customization:* %s\n", c.Notes)
		}
	}

	b.WriteString("\n💰 *PRICING*\n")
	if order.TotalPrice != nil {
		fmt.Fprintf(&b, "*Total Price:* %s\n", rupees(*order.TotalPrice))
	} else {
		b.WriteString("*Price:* To be determined\n")
	}
	if order.SilverPriceSnapshot != nil {
		fmt.Fprintf(&b, "*Silver Price Rate:* %s per tola\n", rupees(*order.SilverPriceSnapshot))
	}

	b.WriteString("\n👤 *CUSTOMER DETAILS*\n")
	fmt.Fprintf(&b, "*Name:* %s\n", order.CustomerName)
	fmt.Fprintf(&b, "*Contact:* %s\n", order.CustomerPhone)
	if order.CustomerEmail != "" {
		fmt.Fprintf(&b, "*Email:* %s\n", order.CustomerEmail)
	}
	if order.CustomerAddress != "" {
		fmt.Fprintf(&b, "*Address:* %s\n", order.CustomerAddress)
	}

	b.WriteString("\n📝 *ADDITIONAL NOTES*\n")
	if order.Notes != "" {
		b.WriteString(order.Notes + "\n")
	} else {
		b.WriteString("No additional notes\n")
	}
	b.WriteString("\n------------------------------\nPlease confirm this order with the customer.\n")
	return b.String()
}
