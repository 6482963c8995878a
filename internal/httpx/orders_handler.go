package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/addresses"
	"github.com/ariefcatur/go-laundry-cart/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type AddressService interface {
	Add(ctx context.Context, userID string, in addresses.NewAddress) (addresses.Address, error)
	List(ctx context.Context, userID string) ([]addresses.Address, error)
	SetDefault(ctx context.Context, userID, id string) error
}

type OrderService interface {
	Place(ctx context.Context, req orders.PlaceRequest) (orders.Order, error)
	Get(ctx context.Context, userID, id string) (orders.Order, error)
	List(ctx context.Context, userID string) ([]orders.Order, error)
	Cancel(ctx context.Context, userID, id, traceID string) (orders.Order, error)
}

type OrdersHandler struct {
	Addresses AddressService
	Orders    OrderService
	Log       *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/addresses", h.listAddresses)
	r.Post("/addresses", h.addAddress)
	r.Post("/addresses/{id}/default", h.setDefaultAddress)
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

// withUser runs fn for an authenticated caller with a bounded context.
func (h *OrdersHandler) withUser(w http.ResponseWriter, r *http.Request, timeout time.Duration, fn func(ctx context.Context, userID string) error) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if err := fn(ctx, userID); err != nil {
		writeError(w, r, h.Log, err)
	}
}

func (h *OrdersHandler) listAddresses(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, 3*time.Second, func(ctx context.Context, userID string) error {
		list, err := h.Addresses.List(ctx, userID)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, toAddressViews(list))
		return nil
	})
}

func (h *OrdersHandler) addAddress(w http.ResponseWriter, r *http.Request) {
	var req addresses.NewAddress
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.withUser(w, r, 5*time.Second, func(ctx context.Context, userID string) error {
		a, err := h.Addresses.Add(ctx, userID, req)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusCreated, a)
		return nil
	})
}

func (h *OrdersHandler) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withUser(w, r, 5*time.Second, func(ctx context.Context, userID string) error {
		if err := h.Addresses.SetDefault(ctx, userID, id); err != nil {
			return err
		}
		list, err := h.Addresses.List(ctx, userID)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, toAddressViews(list))
		return nil
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.withUser(w, r, 10*time.Second, func(ctx context.Context, userID string) error {
		req.UserID = userID
		req.TraceID = middleware.GetReqID(ctx)
		o, err := h.Orders.Place(ctx, req)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusCreated, toOrderView(o))
		return nil
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, 3*time.Second, func(ctx context.Context, userID string) error {
		list, err := h.Orders.List(ctx, userID)
		if err != nil {
			return err
		}
		out := make([]orderView, 0, len(list))
		for _, o := range list {
			out = append(out, toOrderView(o))
		}
		writeJSON(w, http.StatusOK, out)
		return nil
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withUser(w, r, 3*time.Second, func(ctx context.Context, userID string) error {
		o, err := h.Orders.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, toOrderView(o))
		return nil
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withUser(w, r, 5*time.Second, func(ctx context.Context, userID string) error {
		o, err := h.Orders.Cancel(ctx, userID, id, middleware.GetReqID(ctx))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, toOrderView(o))
		return nil
	})
}
