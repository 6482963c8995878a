package coupons

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/shopspring/decimal"
)

type Reason string

const (
	ReasonNotFound               Reason = "NotFound"
	ReasonInactive               Reason = "Inactive"
	ReasonExpired                Reason = "Expired"
	ReasonBelowMinimumOrderValue Reason = "BelowMinimumOrderValue"
	ReasonBelowMinimumItemCount  Reason = "BelowMinimumItemCount"
	ReasonUsageLimitReached      Reason = "UsageLimitReached"
)

func reject(r Reason, format string, args ...any) error {
	return apperr.CouponRejected(string(r), fmt.Sprintf(format, args...))
}

type Validator struct {
	Calc pricing.Calculator
	Now  func() time.Time
}

func NewValidator(calc pricing.Calculator) *Validator {
	return &Validator{Calc: calc, Now: time.Now}
}

// Validate returns the discount c grants for a cart with the given subtotal and
// item count, or a CouponRejected error carrying the reason.
func (v *Validator) Validate(c *Coupon, subtotal decimal.Decimal, count int) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, reject(ReasonNotFound, "invalid coupon code")
	}
	if !c.IsActive {
		return decimal.Zero, reject(ReasonInactive, "coupon %s is not active", c.Code)
	}
	if c.ExpiryDate != nil && c.ExpiryDate.Before(v.Now()) {
		return decimal.Zero, reject(ReasonExpired, "coupon %s has expired", c.Code)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return decimal.Zero, reject(ReasonUsageLimitReached, "coupon %s is no longer available", c.Code)
	}
	if c.MinimumOrderValue != nil && subtotal.LessThan(*c.MinimumOrderValue) {
		return decimal.Zero, reject(ReasonBelowMinimumOrderValue,
			"minimum order value %s required", c.MinimumOrderValue.StringFixed(2))
	}
	if c.MinItems != nil && count < *c.MinItems {
		return decimal.Zero, reject(ReasonBelowMinimumItemCount, "minimum %d items required", *c.MinItems)
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	default:
		discount = c.DiscountValue
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if limit := v.Calc.MaxDiscount(subtotal); discount.GreaterThan(limit) {
		discount = limit
	}
	return discount, nil
}
