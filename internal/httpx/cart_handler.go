package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/coupons"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CouponService interface {
	Quote(ctx context.Context, code string, items []pricing.Item) (coupons.Quote, error)
	Featured(ctx context.Context) ([]coupons.Coupon, error)
}

type CountCache interface {
	Get(ctx context.Context, owner string) (int, bool, error)
	Set(ctx context.Context, owner string, n int) error
}

type CartHandler struct {
	Carts   *carts.Registry
	Merger  *carts.Merger
	Coupons CouponService
	Calc    pricing.Calculator
	Counts  CountCache // optional
	Log     *zap.Logger
}

type addItemReq struct {
	Product  carts.Product `json:"product"`
	Service  carts.Service `json:"service"`
	Quantity int           `json:"quantity"`
}

type setQuantityReq struct {
	Quantity *int `json:"quantity"`
}

type quoteReq struct {
	CouponCode string `json:"coupon_code"`
}

type mergeResp struct {
	SessionLines int      `json:"session_lines"`
	Merged       int      `json:"merged"`
	Cart         cartView `json:"cart"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.clearCart)
	r.Get("/cart/count", h.count)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{id}", h.setQuantity)
	r.Delete("/cart/items/{id}", h.removeItem)
	r.Post("/cart/merge", h.merge)
	r.Post("/cart/quote", h.quote)
	r.Get("/coupons/featured", h.featured)
}

func (h *CartHandler) cart(ctx context.Context) (carts.Cart, error) {
	return h.Carts.For(ctx, identityFrom(ctx))
}

// mutate resolves the caller's cart, applies fn and answers with the
// resulting cart.
func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, code int, fn func(ctx context.Context, c carts.Cart) error) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.cart(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := fn(ctx, c); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, code, toCartView(c.Lines(), h.Calc))
}

// getCart re-reads the cart since another process may have changed it.
func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, c carts.Cart) error { return c.Refresh(ctx) })
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, c carts.Cart) error { return c.Clear(ctx) })
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.mutate(w, r, http.StatusCreated, func(ctx context.Context, c carts.Cart) error {
		return c.Add(ctx, req.Product, req.Service, req.Quantity)
	})
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, h.Log, apperr.Validation("InvalidQuantity", "quantity is required"))
		return
	}
	id := chi.URLParam(r, "id")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, c carts.Cart) error {
		return c.SetQuantity(ctx, id, *req.Quantity)
	})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, http.StatusOK, func(ctx context.Context, c carts.Cart) error { return c.Remove(ctx, id) })
}

func (h *CartHandler) count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.cart(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if h.Counts != nil {
		if n, ok, err := h.Counts.Get(ctx, c.Owner()); err == nil && ok {
			writeJSON(w, http.StatusOK, map[string]int{"count": n})
			return
		}
	}
	if err := c.Refresh(ctx); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	n := pricing.Count(carts.Items(c.Lines()))
	if h.Counts != nil {
		if err := h.Counts.Set(ctx, c.Owner(), n); err != nil {
			h.Log.Warn("cache cart count", zap.String("owner", c.Owner()), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// merge folds the caller's session cart into their user cart. The gateway
// calls it right after sign-in with both identity headers set.
func (h *CartHandler) merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := identityFrom(ctx)
	if !id.Authenticated() {
		writeError(w, r, h.Log, apperr.NotAuthorized("sign in required"))
		return
	}
	if id.SessionID == "" {
		writeError(w, r, h.Log, apperr.Validation("MissingSession", "session id is required"))
		return
	}
	session, err := h.Carts.Session(ctx, id.SessionID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	target, err := h.Carts.Persistent(ctx, id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Merger.Merge(ctx, session, target)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, mergeResp{
		SessionLines: res.SessionLines,
		Merged:       res.Merged,
		Cart:         toCartView(target.Lines(), h.Calc),
	})
}

func (h *CartHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.cart(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := c.Refresh(ctx); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	q, err := h.Coupons.Quote(ctx, req.CouponCode, carts.Items(c.Lines()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillView(q.Bill, q.CouponCode))
}

func (h *CartHandler) featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Coupons.Featured(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]couponView, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCouponView(c))
	}
	writeJSON(w, http.StatusOK, out)
}
