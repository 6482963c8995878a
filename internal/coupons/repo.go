package coupons

import (
	"context"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

const couponColumns = `code, description, discount_type, discount_value, max_discount_amount,
	minimum_order_value, min_items, is_active, is_featured, expiry_date, usage_limit, usage_count`

func scanCoupon(row pgx.Row) (*Coupon, error) {
	var (
		c        Coupon
		dtype    string
		maxDisc  decimal.NullDecimal
		minOrder decimal.NullDecimal
		minItems *int
		expiry   *time.Time
		usageLim *int
		desc     *string
	)
	if err := row.Scan(&c.Code, &desc, &dtype, &c.DiscountValue, &maxDisc, &minOrder,
		&minItems, &c.IsActive, &c.IsFeatured, &expiry, &usageLim, &c.UsageCount); err != nil {
		return nil, err
	}
	c.DiscountType = DiscountType(dtype)
	if desc != nil {
		c.Description = *desc
	}
	if maxDisc.Valid {
		c.MaxDiscountAmount = &maxDisc.Decimal
	}
	if minOrder.Valid {
		c.MinimumOrderValue = &minOrder.Decimal
	}
	c.MinItems = minItems
	c.ExpiryDate = expiry
	c.UsageLimit = usageLim
	return &c, nil
}

func (r *Repo) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE upper(code) = $1`, NormalizeCode(code))
	c, err := scanCoupon(row)
	if err != nil {
		return nil, apperr.Remote("find coupon", err)
	}
	return c, nil
}

func (r *Repo) ListFeatured(ctx context.Context) ([]Coupon, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+couponColumns+` FROM coupons
		WHERE is_featured AND is_active AND (expiry_date IS NULL OR expiry_date > now())
		ORDER BY code`)
	if err != nil {
		return nil, apperr.Remote("list coupons", err)
	}
	defer rows.Close()

	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, apperr.Remote("scan coupon", err)
		}
		out = append(out, *c)
	}
	return out, apperr.Remote("list coupons", rows.Err())
}

func (r *Repo) IncrementUsage(ctx context.Context, code string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE coupons SET usage_count = usage_count + 1 WHERE upper(code) = $1`, NormalizeCode(code))
	if err != nil {
		return apperr.Remote("increment coupon usage", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("coupon " + code)
	}
	return nil
}
