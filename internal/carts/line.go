package carts

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultCategory = "general"
	sessionIDPrefix = "session-"
)

type Product struct {
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Category  string          `json:"category,omitempty"`
}

// Service is the processing method chosen for a product (e.g. "Steam Iron").
type Service struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
}

type Line struct {
	ID               string          `json:"id"`
	ProductName      string          `json:"product_name"`
	ProductImage     string          `json:"product_image,omitempty"`
	ProductUnitPrice decimal.Decimal `json:"product_price"`
	ServiceType      string          `json:"service_type"`
	ServiceUnitPrice decimal.Decimal `json:"service_price"`
	Quantity         int             `json:"quantity"`
	LineTotal        decimal.Decimal `json:"line_total"`
	Category         string          `json:"category"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (l *Line) recompute() {
	l.LineTotal = pricing.LineTotal(l.ProductUnitPrice, l.ServiceUnitPrice, l.Quantity)
}

func (l Line) sameItem(product, service string) bool {
	return l.ProductName == product && l.ServiceType == service
}

func newLine(p Product, s Service, qty int, now time.Time) Line {
	cat := p.Category
	if cat == "" {
		cat = DefaultCategory
	}
	l := Line{
		ProductName:      p.Name,
		ProductImage:     p.Image,
		ProductUnitPrice: p.UnitPrice,
		ServiceType:      s.Name,
		ServiceUnitPrice: s.UnitPrice,
		Quantity:         qty,
		Category:         cat,
		CreatedAt:        now,
	}
	l.recompute()
	return l
}

func validateAdd(p Product, s Service, qty int) error {
	if qty < 1 {
		return apperr.Validation("InvalidQuantity", "quantity must be at least 1")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validation("MissingProduct", "product name is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return apperr.Validation("MissingService", "service type is required")
	}
	if p.UnitPrice.IsNegative() || s.UnitPrice.IsNegative() {
		return apperr.Validation("InvalidPrice", "prices must not be negative")
	}
	// cart_items stores prices as NUMERIC(12,2)
	if !isCents(p.UnitPrice) || !isCents(s.UnitPrice) {
		return apperr.Validation("InvalidPrice", "prices must have at most two decimal places")
	}
	return nil
}

func isCents(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }

func newSessionLineID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", sessionIDPrefix, now.UnixMilli(), uuid.NewString()[:8])
}

func IsSessionLineID(id string) bool { return strings.HasPrefix(id, sessionIDPrefix) }

// Items adapts lines for the pricing package.
func Items(lines []Line) []pricing.Item {
	out := make([]pricing.Item, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.Item{Quantity: l.Quantity, LineTotal: l.LineTotal})
	}
	return out
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return []Line{}
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
