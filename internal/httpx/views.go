package httpx

import (
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/addresses"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/coupons"
	"github.com/ariefcatur/go-laundry-cart/internal/orders"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

type lineView struct {
	ID           string    `json:"id"`
	ProductName  string    `json:"product_name"`
	ProductImage string    `json:"product_image,omitempty"`
	ProductPrice string    `json:"product_price"`
	ServiceType  string    `json:"service_type"`
	ServicePrice string    `json:"service_price"`
	Quantity     int       `json:"quantity"`
	LineTotal    string    `json:"line_total"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

type billView struct {
	ItemCount   int    `json:"item_count"`
	Subtotal    string `json:"subtotal"`
	DeliveryFee string `json:"delivery_fee"`
	Tax         string `json:"tax"`
	Discount    string `json:"discount"`
	Total       string `json:"total"`
	CouponCode  string `json:"coupon_code,omitempty"`
}

type cartView struct {
	Items []lineView `json:"items"`
	Bill  billView   `json:"bill"`
}

func toBillView(b pricing.Bill, code string) billView {
	return billView{
		ItemCount:   b.Count,
		Subtotal:    money(b.Subtotal),
		DeliveryFee: money(b.DeliveryFee),
		Tax:         money(b.Tax),
		Discount:    money(b.Discount),
		Total:       money(b.GrandTotal),
		CouponCode:  code,
	}
}

func toCartView(lines []carts.Line, calc pricing.Calculator) cartView {
	items := make([]lineView, 0, len(lines))
	for _, l := range lines {
		items = append(items, lineView{
			ID:           l.ID,
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			ProductPrice: money(l.ProductUnitPrice),
			ServiceType:  l.ServiceType,
			ServicePrice: money(l.ServiceUnitPrice),
			Quantity:     l.Quantity,
			LineTotal:    money(l.LineTotal),
			Category:     l.Category,
			CreatedAt:    l.CreatedAt,
		})
	}
	return cartView{Items: items, Bill: toBillView(calc.Bill(carts.Items(lines), decimal.Zero), "")}
}

type couponView struct {
	Code              string     `json:"code"`
	Description       string     `json:"description,omitempty"`
	DiscountType      string     `json:"discount_type"`
	DiscountValue     string     `json:"discount_value"`
	MaxDiscountAmount *string    `json:"max_discount_amount,omitempty"`
	MinimumOrderValue *string    `json:"minimum_order_value,omitempty"`
	MinItems          *int       `json:"min_items,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
}

func optMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func toCouponView(c coupons.Coupon) couponView {
	return couponView{
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     money(c.DiscountValue),
		MaxDiscountAmount: optMoney(c.MaxDiscountAmount),
		MinimumOrderValue: optMoney(c.MinimumOrderValue),
		MinItems:          c.MinItems,
		ExpiryDate:        c.ExpiryDate,
	}
}

type orderLineView struct {
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	ProductPrice string `json:"product_price"`
	ServiceType  string `json:"service_type"`
	ServicePrice string `json:"service_price"`
	Quantity     int    `json:"quantity"`
	LineTotal    string `json:"line_total"`
	Category     string `json:"category"`
}

type orderView struct {
	ID                  string                `json:"id"`
	Status              orders.Status         `json:"order_status"`
	PaymentMethod       orders.PaymentMethod  `json:"payment_method"`
	PaymentStatus       orders.PaymentStatus  `json:"payment_status"`
	Bill                billView              `json:"bill"`
	DeliveryAddress     string                `json:"delivery_address"`
	AddressDetails      orders.AddressDetails `json:"address_details"`
	PickupDate          string                `json:"pickup_date"`
	DeliveryDate        string                `json:"delivery_date"`
	DeliverySlot        orders.Slot           `json:"delivery_slot"`
	SlotWindow          string                `json:"slot_window"`
	SpecialInstructions string                `json:"special_instructions,omitempty"`
	Lines               []orderLineView       `json:"lines,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
}

func toOrderView(o orders.Order) orderView {
	v := orderView{
		ID:            o.ID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Bill: billView{
			ItemCount:   o.ItemCount,
			Subtotal:    money(o.Subtotal),
			DeliveryFee: money(o.DeliveryFee),
			Tax:         money(o.Tax),
			Discount:    money(o.DiscountAmount),
			Total:       money(o.TotalAmount),
			CouponCode:  o.CouponCode,
		},
		DeliveryAddress:     o.DeliveryAddress,
		AddressDetails:      o.AddressDetails,
		PickupDate:          o.PickupDate.Format(time.DateOnly),
		DeliveryDate:        o.DeliveryDate.Format(time.DateOnly),
		DeliverySlot:        o.DeliverySlot,
		SlotWindow:          o.DeliverySlot.Window(),
		SpecialInstructions: o.SpecialInstructions,
		CreatedAt:           o.CreatedAt,
	}
	for _, l := range o.Lines {
		v.Lines = append(v.Lines, orderLineView{
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			ProductPrice: money(l.ProductPrice),
			ServiceType:  l.ServiceType,
			ServicePrice: money(l.ServicePrice),
			Quantity:     l.Quantity,
			LineTotal:    money(l.LineTotal),
			Category:     l.Category,
		})
	}
	return v
}

func toAddressViews(in []addresses.Address) []addresses.Address {
	if in == nil {
		return []addresses.Address{}
	}
	return in
}
