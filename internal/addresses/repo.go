package addresses

import (
	"context"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const addressColumns = `id, user_id, address_type, full_address, coalesce(landmark, ''), city, state, pincode, is_default, created_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	var typ string
	err := row.Scan(&a.ID, &a.UserID, &typ, &a.FullAddress, &a.Landmark, &a.City, &a.State, &a.Pincode, &a.IsDefault, &a.CreatedAt)
	a.AddressType = Type(typ)
	return a, err
}

// Insert: addresses_one_default_per_user (partial unique index) guards the
// default flag if two first inserts race.
func (r *Repo) Insert(ctx context.Context, userID string, in NewAddress) (Address, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO addresses (user_id, address_type, full_address, landmark, city, state, pincode, is_default)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7,
		        NOT EXISTS (SELECT 1 FROM addresses WHERE user_id = $1))
		RETURNING `+addressColumns,
		userID, string(in.AddressType), in.FullAddress, in.Landmark, in.City, in.State, in.Pincode)
	a, err := scanAddress(row)
	if err != nil {
		return Address{}, apperr.Remote("insert address", err)
	}
	return a, nil
}

func (r *Repo) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Remote("list addresses", err)
	}
	defer rows.Close()

	out := []Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, apperr.Remote("scan address", err)
		}
		out = append(out, a)
	}
	return out, apperr.Remote("list addresses", rows.Err())
}

func (r *Repo) Get(ctx context.Context, userID, id string) (Address, error) {
	a, err := scanAddress(r.DB.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return Address{}, apperr.Remote("get address "+id, err)
	}
	return a, nil
}

func (r *Repo) SetDefault(ctx context.Context, userID, id string) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`, id, userID).Scan(&exists); err != nil {
			return apperr.Remote("find address", err)
		}
		if !exists {
			return apperr.NotFound("address " + id)
		}
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1 AND is_default`, userID); err != nil {
			return apperr.Remote("clear default address", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = true WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
			return apperr.Remote("set default address", err)
		}
		return nil
	})
}
