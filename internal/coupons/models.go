package coupons

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is read-only here; rows are managed by the back office.
type Coupon struct {
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal // percentage only
	MinimumOrderValue *decimal.Decimal
	MinItems          *int
	IsActive          bool
	IsFeatured        bool
	ExpiryDate        *time.Time
	UsageLimit        *int
	UsageCount        int
}

// NormalizeCode makes codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
