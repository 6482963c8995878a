package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, order_status, payment_method, payment_status, item_count,
	subtotal, delivery_fee, tax, discount_amount, total_amount, coalesce(coupon_code, ''),
	address_id, delivery_address, address_details, pickup_date, delivery_date, delivery_slot,
	special_instructions, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		status  string
		method  string
		payStat string
		slot    string
		details []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &method, &payStat, &o.ItemCount,
		&o.Subtotal, &o.DeliveryFee, &o.Tax, &o.DiscountAmount, &o.TotalAmount, &o.CouponCode,
		&o.AddressID, &o.DeliveryAddress, &details, &o.PickupDate, &o.DeliveryDate, &slot,
		&o.SpecialInstructions, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(method)
	o.PaymentStatus = PaymentStatus(payStat)
	o.DeliverySlot = Slot(slot)
	if err := json.Unmarshal(details, &o.AddressDetails); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Insert writes the order, its lines, the removal of the cart rows it was
// placed from and its outbox event in one transaction. If any cart row is
// already gone the whole placement is rolled back with Conflict.
func (r *Repo) Insert(ctx context.Context, o Order, cartLineIDs []string, msg OutboxMessage) error {
	details, err := json.Marshal(o.AddressDetails)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Remote("begin order tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, order_status, payment_method, payment_status, item_count,
		                    subtotal, delivery_fee, tax, discount_amount, total_amount, coupon_code,
		                    address_id, delivery_address, address_details, pickup_date, delivery_date,
		                    delivery_slot, special_instructions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''),
		        $13, $14, $15, $16, $17, $18, $19, $20, $20)`,
		o.ID, o.UserID, string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus), o.ItemCount,
		o.Subtotal, o.DeliveryFee, o.Tax, o.DiscountAmount, o.TotalAmount, o.CouponCode,
		o.AddressID, o.DeliveryAddress, details, o.PickupDate, o.DeliveryDate,
		string(o.DeliverySlot), o.SpecialInstructions, o.CreatedAt)
	if err != nil {
		return apperr.Remote("insert order", err)
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_name, product_image, product_price, service_type,
			                         service_price, quantity, line_total, category, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			o.ID, l.ProductName, l.ProductImage, l.ProductPrice, l.ServiceType,
			l.ServicePrice, l.Quantity, l.LineTotal, l.Category, l.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperr.Remote("insert order items", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2::uuid[])`, o.UserID, cartLineIDs)
	if err != nil {
		return apperr.Remote("clear ordered cart lines", err)
	}
	if int(ct.RowsAffected()) != len(cartLineIDs) {
		return apperr.Conflict("cart changed while placing the order")
	}

	if err := insertOutbox(ctx, tx, msg); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Remote("commit order", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, userID, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return Order{}, apperr.Remote("get order "+id, err)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_name, product_image, product_price, service_type, service_price,
		       quantity, line_total, category, created_at
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, apperr.Remote("list order items", err)
	}
	defer rows.Close()

	o.Lines = []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.OrderID, &l.ProductName, &l.ProductImage, &l.ProductPrice, &l.ServiceType,
			&l.ServicePrice, &l.Quantity, &l.LineTotal, &l.Category, &l.CreatedAt); err != nil {
			return Order{}, apperr.Remote("scan order item", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Order{}, apperr.Remote("list order items", err)
	}
	return o, nil
}

// ListByUser returns order headers, newest first, without lines.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Remote("list orders", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Remote("scan order", err)
		}
		out = append(out, o)
	}
	return out, apperr.Remote("list orders", rows.Err())
}

// UpdateStatus moves an order from one status to another and records msg in
// the outbox. The row must still be in from; otherwise Conflict.
func (r *Repo) UpdateStatus(ctx context.Context, userID, id string, from, to Status, msg OutboxMessage) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `UPDATE orders SET order_status = $4, updated_at = now()
			WHERE id = $1 AND user_id = $2 AND order_status = $3`, id, userID, string(from), string(to))
		if err != nil {
			return apperr.Remote("update order status", err)
		}
		if ct.RowsAffected() == 0 {
			return apperr.Conflict("order " + id + " is no longer " + string(from))
		}
		return insertOutbox(ctx, tx, msg)
	})
}

func insertOutbox(ctx context.Context, tx pgx.Tx, msg OutboxMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_id, topic, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.AggregateID, msg.Topic, msg.EventType, msg.Payload, msg.CreatedAt)
	return apperr.Remote("insert outbox", err)
}

func (r *Repo) Unpublished(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, aggregate_id, topic, event_type, payload, created_at
		FROM outbox WHERE published_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Remote("list outbox", err)
	}
	defer rows.Close()

	var out []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateID, &m.Topic, &m.EventType, &m.Payload, &m.CreatedAt); err != nil {
			return nil, apperr.Remote("scan outbox", err)
		}
		out = append(out, m)
	}
	return out, apperr.Remote("list outbox", rows.Err())
}

func (r *Repo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `UPDATE outbox SET published_at = $2 WHERE id = $1`, id, at)
	return apperr.Remote("mark outbox published", err)
}
