package coupons

import (
	"context"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/shopspring/decimal"
)

type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	ListFeatured(ctx context.Context) ([]Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
}

// Quote is a bill plus the coupon that produced its discount, if any.
type Quote struct {
	Bill       pricing.Bill
	CouponCode string
}

type Service struct {
	Repo      Repository
	Validator *Validator
}

// Quote prices items and, when code is non-empty, validates the coupon
// against them. A coupon is never carried over from an earlier quote.
func (s *Service) Quote(ctx context.Context, code string, items []pricing.Item) (Quote, error) {
	calc := s.Validator.Calc
	code = NormalizeCode(code)
	if code == "" {
		return Quote{Bill: calc.Bill(items, decimal.Zero)}, nil
	}

	c, err := s.Repo.FindByCode(ctx, code)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Quote{}, reject(ReasonNotFound, "invalid coupon code")
		}
		return Quote{}, apperr.Remote("find coupon", err)
	}

	discount, err := s.Validator.Validate(c, pricing.Subtotal(items), pricing.Count(items))
	if err != nil {
		return Quote{}, err
	}
	return Quote{Bill: calc.Bill(items, discount), CouponCode: c.Code}, nil
}

func (s *Service) Featured(ctx context.Context) ([]Coupon, error) {
	out, err := s.Repo.ListFeatured(ctx)
	if err != nil {
		return nil, apperr.Remote("list featured coupons", err)
	}
	return out, nil
}
