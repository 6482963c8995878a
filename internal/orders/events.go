package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "cart-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	ProductName string          `json:"product_name"`
	ServiceType string          `json:"service_type"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type OrderPlacedPayload struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	ItemCount      int             `json:"item_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Items          []PlacedItem    `json:"items"`
}

type OrderCancelledPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	CouponCode string `json:"coupon_code,omitempty"`
}

func placedPayload(o Order) OrderPlacedPayload {
	items := make([]PlacedItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, PlacedItem{
			ProductName: l.ProductName,
			ServiceType: l.ServiceType,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal,
		})
	}
	return OrderPlacedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		ItemCount:      o.ItemCount,
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		CouponCode:     o.CouponCode,
		PaymentMethod:  o.PaymentMethod,
		Items:          items,
	}
}
