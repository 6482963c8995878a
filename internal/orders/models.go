package orders

import (
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/addresses"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentUPI            PaymentMethod = "upi"
	PaymentCard           PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentUPI, PaymentCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Slot string

const (
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
)

var slotWindows = map[Slot]string{
	SlotMorning:   "9:00 AM - 12:00 PM",
	SlotAfternoon: "12:00 PM - 6:00 PM",
	SlotEvening:   "6:00 PM - 9:00 PM",
}

func (s Slot) Valid() bool {
	_, ok := slotWindows[s]
	return ok
}

// Window is the human readable time range of the slot.
func (s Slot) Window() string { return slotWindows[s] }

// AddressDetails is the address as it was when the order was placed.
type AddressDetails struct {
	AddressType addresses.Type `json:"address_type"`
	FullAddress string         `json:"full_address"`
	Landmark    string         `json:"landmark,omitempty"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	Pincode     string         `json:"pincode"`
}

func snapshotAddress(a addresses.Address) AddressDetails {
	return AddressDetails{
		AddressType: a.AddressType,
		FullAddress: a.FullAddress,
		Landmark:    a.Landmark,
		City:        a.City,
		State:       a.State,
		Pincode:     a.Pincode,
	}
}

// Line is a value copy of the cart line it was placed from.
type Line struct {
	OrderID      string          `json:"order_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	ProductPrice decimal.Decimal `json:"product_price"`
	ServiceType  string          `json:"service_type"`
	ServicePrice decimal.Decimal `json:"service_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Category     string          `json:"category"`
	CreatedAt    time.Time       `json:"created_at"`
}

func lineFromCart(orderID string, l carts.Line) Line {
	return Line{
		OrderID:      orderID,
		ProductName:  l.ProductName,
		ProductImage: l.ProductImage,
		ProductPrice: l.ProductUnitPrice,
		ServiceType:  l.ServiceType,
		ServicePrice: l.ServiceUnitPrice,
		Quantity:     l.Quantity,
		LineTotal:    l.LineTotal,
		Category:     l.Category,
		CreatedAt:    l.CreatedAt,
	}
}

type Order struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	Status              Status          `json:"order_status"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	ItemCount           int             `json:"item_count"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee"`
	Tax                 decimal.Decimal `json:"tax"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	CouponCode          string          `json:"coupon_code,omitempty"`
	AddressID           string          `json:"address_id"`
	DeliveryAddress     string          `json:"delivery_address"`
	AddressDetails      AddressDetails  `json:"address_details"`
	PickupDate          time.Time       `json:"pickup_date"`
	DeliveryDate        time.Time       `json:"delivery_date"`
	DeliverySlot        Slot            `json:"delivery_slot"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Lines               []Line          `json:"lines"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
