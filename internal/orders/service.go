package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/addresses"
	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/coupons"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	Insert(ctx context.Context, o Order, cartLineIDs []string, msg OutboxMessage) error
	Get(ctx context.Context, userID, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, userID, id string, from, to Status, msg OutboxMessage) error
}

type CartSource interface {
	Persistent(ctx context.Context, userID string) (*carts.PersistentCart, error)
}

type Quoter interface {
	Quote(ctx context.Context, code string, items []pricing.Item) (coupons.Quote, error)
}

type AddressBook interface {
	Get(ctx context.Context, userID, id string) (addresses.Address, error)
}

type PlaceRequest struct {
	UserID              string        `json:"-"`
	AddressID           string        `json:"address_id"`
	DeliverySlot        Slot          `json:"delivery_slot"`
	PaymentMethod       PaymentMethod `json:"payment_method"`
	CouponCode          string        `json:"coupon_code"`
	SpecialInstructions string        `json:"special_instructions"`
	TraceID             string        `json:"-"`
}

func (r *PlaceRequest) normalize() error {
	if r.UserID == "" {
		return apperr.NotAuthorized("sign in to place an order")
	}
	if r.AddressID == "" {
		return apperr.Validation("MissingAddress", "please select a delivery address")
	}
	if !r.DeliverySlot.Valid() {
		return apperr.Validation("InvalidSlot", "please select a delivery slot")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = PaymentCashOnDelivery
	}
	if !r.PaymentMethod.Valid() {
		return apperr.Validation("InvalidPaymentMethod", "unsupported payment method")
	}
	r.SpecialInstructions = strings.TrimSpace(r.SpecialInstructions)
	return nil
}

type Service struct {
	Store     Store
	Carts     CartSource
	Coupons   Quoter
	Addresses AddressBook
	Producer  string
	Log       *zap.Logger
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Place turns the user's persistent cart into an order. The coupon is
// validated again against the cart as it is now.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (Order, error) {
	if err := req.normalize(); err != nil {
		return Order{}, err
	}
	addr, err := s.Addresses.Get(ctx, req.UserID, req.AddressID)
	if err != nil {
		return Order{}, err
	}
	cart, err := s.Carts.Persistent(ctx, req.UserID)
	if err != nil {
		return Order{}, err
	}

	var placed Order
	err = cart.Checkout(ctx, func(lines []carts.Line) error {
		if len(lines) == 0 {
			return apperr.Validation("EmptyCart", "your cart is empty")
		}
		q, err := s.Coupons.Quote(ctx, req.CouponCode, carts.Items(lines))
		if err != nil {
			return err
		}

		o := s.newOrder(req, addr, lines, q)
		msg := newOutboxMessage(s.Producer, req.TraceID, TopicOrderPlaced, EventOrderPlaced, o.ID, placedPayload(o), o.CreatedAt)
		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ID)
		}
		if err := s.Store.Insert(ctx, o, ids, msg); err != nil {
			return apperr.Remote("place order", err)
		}
		placed = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.Log.Info("order placed",
		zap.String("order_id", placed.ID), zap.String("user_id", placed.UserID),
		zap.Int("items", placed.ItemCount), zap.String("total", placed.TotalAmount.StringFixed(2)),
		zap.String("coupon", placed.CouponCode))
	return placed, nil
}

func (s *Service) newOrder(req PlaceRequest, addr addresses.Address, lines []carts.Line, q coupons.Quote) Order {
	now := s.now().UTC()
	id := newOrderID(now)
	pickup := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	bill := q.Bill.Rounded()

	o := Order{
		ID:                  id,
		UserID:              req.UserID,
		Status:              StatusConfirmed,
		PaymentMethod:       req.PaymentMethod,
		PaymentStatus:       PaymentPending,
		ItemCount:           bill.Count,
		Subtotal:            bill.Subtotal,
		DeliveryFee:         bill.DeliveryFee,
		Tax:                 bill.Tax,
		DiscountAmount:      bill.Discount,
		TotalAmount:         bill.GrandTotal,
		CouponCode:          q.CouponCode,
		AddressID:           addr.ID,
		DeliveryAddress:     addr.FullAddress,
		AddressDetails:      snapshotAddress(addr),
		PickupDate:          pickup,
		DeliveryDate:        pickup.AddDate(0, 0, 1),
		DeliverySlot:        req.DeliverySlot,
		SpecialInstructions: req.SpecialInstructions,
		Lines:               make([]Line, 0, len(lines)),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, l := range lines {
		o.Lines = append(o.Lines, lineFromCart(id, l))
	}
	return o
}

// newOrderID is IX<unix millis> plus a short random suffix so two orders in
// the same millisecond never collide.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("IX%d%s", now.UnixMilli(), strings.ToUpper(uuid.NewString()[:4]))
}

func (s *Service) Get(ctx context.Context, userID, id string) (Order, error) {
	o, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Order{}, apperr.Remote("get order", err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	out, err := s.Store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Remote("list orders", err)
	}
	return out, nil
}

// Cancel is allowed only before the pickup has happened.
func (s *Service) Cancel(ctx context.Context, userID, id, traceID string) (Order, error) {
	o, err := s.Get(ctx, userID, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return Order{}, apperr.Conflict("order " + id + " can no longer be cancelled (" + string(o.Status) + ")")
	}
	now := s.now().UTC()
	msg := newOutboxMessage(s.Producer, traceID, TopicOrderCancelled, EventOrderCancelled, o.ID,
		OrderCancelledPayload{OrderID: o.ID, UserID: o.UserID, CouponCode: o.CouponCode}, now)
	if err := s.Store.UpdateStatus(ctx, userID, id, o.Status, StatusCancelled, msg); err != nil {
		return Order{}, apperr.Remote("cancel order", err)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	s.Log.Info("order cancelled", zap.String("order_id", o.ID), zap.String("user_id", userID))
	return o, nil
}
