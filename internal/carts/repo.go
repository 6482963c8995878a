package carts

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo stores cart lines in the cart_items table.
type Repo struct{ DB *pgxpool.Pool }

const lineColumns = `id, product_name, product_image, product_price, service_type, service_price,
	quantity, line_total, category, created_at`

// upsertLine keeps one row per (user, product, service); the unique index
// cart_items_user_item_key backs it.
const upsertLine = `
	INSERT INTO cart_items (user_id, product_name, product_image, product_price, service_type,
	                        service_price, quantity, line_total, category)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''))
	ON CONFLICT (user_id, product_name, service_type) DO UPDATE
	SET quantity   = cart_items.quantity + EXCLUDED.quantity,
	    line_total = (cart_items.product_price + cart_items.service_price) * (cart_items.quantity + EXCLUDED.quantity),
	    updated_at = now()`

func scanLine(row pgx.Row) (Line, error) {
	var (
		l        Line
		image    *string
		category *string
	)
	if err := row.Scan(&l.ID, &l.ProductName, &image, &l.ProductUnitPrice, &l.ServiceType,
		&l.ServiceUnitPrice, &l.Quantity, &l.LineTotal, &category, &l.CreatedAt); err != nil {
		return Line{}, err
	}
	if image != nil {
		l.ProductImage = *image
	}
	l.Category = DefaultCategory
	if category != nil {
		l.Category = *category
	}
	return l, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+lineColumns+` FROM cart_items
		WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, apperr.Remote("list cart", err)
	}
	defer rows.Close()

	out := []Line{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, apperr.Remote("scan cart line", err)
		}
		out = append(out, l)
	}
	return out, apperr.Remote("list cart", rows.Err())
}

func (r *Repo) Get(ctx context.Context, userID, lineID string) (Line, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+lineColumns+` FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, userID)
	l, err := scanLine(row)
	if err != nil {
		return Line{}, apperr.Remote("get cart line "+lineID, err)
	}
	return l, nil
}

func (r *Repo) Upsert(ctx context.Context, userID string, l Line) error {
	_, err := r.DB.Exec(ctx, upsertLine, userID, l.ProductName, l.ProductImage, l.ProductUnitPrice,
		l.ServiceType, l.ServiceUnitPrice, l.Quantity, l.LineTotal, l.Category)
	return apperr.Remote("upsert cart line", err)
}

func (r *Repo) UpdateQuantity(ctx context.Context, userID, lineID string, qty int, lineTotal decimal.Decimal) error {
	ct, err := r.DB.Exec(ctx, `UPDATE cart_items SET quantity = $3, line_total = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2`, lineID, userID, qty, lineTotal)
	if err != nil {
		return apperr.Remote("update cart line", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("cart line " + lineID)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, userID, lineID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, userID)
	if err != nil {
		return apperr.Remote("delete cart line", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("cart line " + lineID)
	}
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return apperr.Remote("clear cart", err)
}

// MergeLines records how much of each session line has been merged in
// cart_merge_log and only folds in the difference, so a retried merge never
// doubles a quantity.
func (r *Repo) MergeLines(ctx context.Context, userID string, lines []Line) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, apperr.Remote("begin merge", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	merged := 0
	for _, l := range lines {
		var done int
		err := tx.QueryRow(ctx, `SELECT quantity FROM cart_merge_log WHERE session_line_id = $1 FOR UPDATE`, l.ID).Scan(&done)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.Remote("read merge log", err)
		}
		delta := l.Quantity - done
		if delta <= 0 {
			continue
		}

		part := l
		part.Quantity = delta
		part.recompute()
		if _, err := tx.Exec(ctx, upsertLine, userID, part.ProductName, part.ProductImage, part.ProductUnitPrice,
			part.ServiceType, part.ServiceUnitPrice, part.Quantity, part.LineTotal, part.Category); err != nil {
			return 0, apperr.Remote("merge cart line", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_merge_log (session_line_id, user_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (session_line_id) DO UPDATE SET quantity = EXCLUDED.quantity, merged_at = now()`,
			l.ID, userID, l.Quantity); err != nil {
			return 0, apperr.Remote("write merge log", err)
		}
		merged++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Remote("commit merge", err)
	}
	return merged, nil
}
