package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/addresses"
	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/carts/cartstest"
	"github.com/ariefcatur/go-laundry-cart/internal/coupons"
	"github.com/ariefcatur/go-laundry-cart/internal/orders"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type couponRepo map[string]coupons.Coupon

func (r couponRepo) FindByCode(_ context.Context, code string) (*coupons.Coupon, error) {
	c, ok := r[code]
	if !ok {
		return nil, apperr.NotFound("coupon " + code)
	}
	return &c, nil
}

func (r couponRepo) ListFeatured(context.Context) ([]coupons.Coupon, error) {
	var out []coupons.Coupon
	for _, c := range r {
		if c.IsFeatured {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r couponRepo) IncrementUsage(context.Context, string) error { return nil }

type stubAddresses struct {
	added []addresses.NewAddress
}

func (s *stubAddresses) Add(_ context.Context, userID string, in addresses.NewAddress) (addresses.Address, error) {
	s.added = append(s.added, in)
	return addresses.Address{ID: "addr-1", UserID: userID, FullAddress: in.FullAddress, IsDefault: true}, nil
}

func (s *stubAddresses) List(context.Context, string) ([]addresses.Address, error) { return nil, nil }
func (s *stubAddresses) SetDefault(context.Context, string, string) error { return nil }

type stubOrders struct {
	placed []orders.PlaceRequest
	getErr error
}

func (s *stubOrders) Place(_ context.Context, req orders.PlaceRequest) (orders.Order, error) {
	s.placed = append(s.placed, req)
	return orders.Order{
		ID: "IX1700000000000ABCD", UserID: req.UserID, Status: orders.StatusConfirmed,
		PaymentMethod: orders.PaymentCashOnDelivery, PaymentStatus: orders.PaymentPending,
		ItemCount: 1, Subtotal: decimal.NewFromInt(60), DeliveryFee: decimal.NewFromInt(30),
		Tax: decimal.RequireFromString("7.2"), TotalAmount: decimal.RequireFromString("97.2"),
		PickupDate:   time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		DeliveryDate: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		DeliverySlot: req.DeliverySlot,
	}, nil
}

func (s *stubOrders) Get(_ context.Context, _, id string) (orders.Order, error) {
	if s.getErr != nil {
		return orders.Order{}, s.getErr
	}
	return orders.Order{}, apperr.NotFound("order " + id)
}

func (s *stubOrders) List(context.Context, string) ([]orders.Order, error) { return nil, nil }

func (s *stubOrders) Cancel(_ context.Context, _, id, _ string) (orders.Order, error) {
	return orders.Order{}, apperr.Conflict("order " + id + " can no longer be cancelled")
}

type testServer struct {
	srv       *httptest.Server
	repo      *cartstest.Repo
	storage   *cartstest.Storage
	addresses *stubAddresses
	orders    *stubOrders
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	ts := &testServer{
		repo:      cartstest.NewRepo(),
		storage:   cartstest.NewStorage(),
		addresses: &stubAddresses{},
		orders:    &stubOrders{},
	}
	registry, err := carts.NewRegistry(ts.repo, ts.storage, 64, log)
	require.NoError(t, err)

	maxDisc := decimal.NewFromInt(50)
	minOrder := decimal.NewFromInt(300)
	couponSvc := &coupons.Service{
		Repo: couponRepo{
			"SAVE20": {Code: "SAVE20", DiscountType: coupons.DiscountPercentage, DiscountValue: decimal.NewFromInt(20),
				MaxDiscountAmount: &maxDisc, MinimumOrderValue: &minOrder, IsActive: true, IsFeatured: true},
		},
		Validator: coupons.NewValidator(pricing.Default()),
	}

	r := NewRouter(log)
	(&CartHandler{
		Carts:   registry,
		Merger:  &carts.Merger{Repo: ts.repo, Locker: cartstest.NewLocker(), Log: log},
		Coupons: couponSvc,
		Calc:    pricing.Default(),
		Log:     log,
	}).Register(r)
	(&OrdersHandler{Addresses: ts.addresses, Orders: ts.orders, Log: log}).Register(r)

	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)
	return ts
}

type who struct{ user, session string }

func (ts *testServer) do(t *testing.T, id who, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if id.user != "" {
		req.Header.Set(HeaderUserID, id.user)
	}
	if id.session != "" {
		req.Header.Set(HeaderSessionID, id.session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	m, _ := out.(map[string]any)
	return resp, m
}

var (
	guest = who{session: "sess-1"}
	alice = who{user: "alice", session: "sess-1"}
)

func shirtSteamIron(qty int) map[string]any {
	return map[string]any{
		"product":  map[string]any{"name": "Shirt", "price": "40", "category": "tops"},
		"service":  map[string]any{"name": "Steam Iron", "price": 20},
		"quantity": qty,
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuestCart_AddAndCount(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, guest, http.MethodPost, "/cart/items", shirtSteamIron(2))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "120.00", line["line_total"])
	bill := body["bill"].(map[string]any)
	assert.Equal(t, "120.00", bill["subtotal"])
	assert.Equal(t, "14.40", bill["tax"])
	assert.Equal(t, "164.40", bill["total"])

	resp, body = ts.do(t, guest, http.MethodGet, "/cart/count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])

	assert.True(t, ts.storage.Has("cart:session:sess-1"))
}

func TestCart_UpdateAndRemove(t *testing.T) {
	ts := newTestServer(t)
	_, body := ts.do(t, guest, http.MethodPost, "/cart/items", shirtSteamIron(1))
	id := body["items"].([]any)[0].(map[string]any)["id"].(string)

	resp, body := ts.do(t, guest, http.MethodPatch, "/cart/items/"+id, map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "180.00", body["items"].([]any)[0].(map[string]any)["line_total"])

	resp, body = ts.do(t, guest, http.MethodPatch, "/cart/items/"+id, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidQuantity", body["reason"])

	resp, body = ts.do(t, guest, http.MethodDelete, "/cart/items/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["items"])

	resp, _ = ts.do(t, guest, http.MethodDelete, "/cart/items/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCart_Errors(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, who{}, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MissingSession", body["reason"])

	resp, body = ts.do(t, guest, http.MethodPost, "/cart/items", shirtSteamIron(0))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidQuantity", body["reason"])
	assert.Equal(t, "VALIDATION", body["kind"])

	ts.repo.Err = errors.New("connection refused")
	resp, body = ts.do(t, who{user: "bob"}, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "REMOTE_UNAVAILABLE", body["kind"])
}

func TestCart_ReadsSeeWritesFromOtherProcesses(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	resp, body := ts.do(t, who{user: "bob"}, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["items"])

	// another replica adds a line straight to the shared store
	other, err := carts.NewRegistry(ts.repo, ts.storage, 8, zap.NewNop())
	require.NoError(t, err)
	bob, err := other.Persistent(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, bob.Add(ctx, carts.Product{Name: "Shirt", UnitPrice: decimal.NewFromInt(40)},
		carts.Service{Name: "Steam Iron", UnitPrice: decimal.NewFromInt(20)}, 2))

	resp, body = ts.do(t, who{user: "bob"}, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)

	resp, body = ts.do(t, who{user: "bob"}, http.MethodGet, "/cart/count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])

	resp, body = ts.do(t, who{user: "bob"}, http.MethodPost, "/cart/quote", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "120.00", body["subtotal"])
}

func TestCart_MergeAfterSignIn(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, guest, http.MethodPost, "/cart/items", shirtSteamIron(2))

	resp, body := ts.do(t, guest, http.MethodPost, "/cart/merge", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, alice, http.MethodPost, "/cart/merge", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["merged"])
	cart := body["cart"].(map[string]any)
	assert.Len(t, cart["items"], 1)

	resp, body = ts.do(t, alice, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "120.00", body["bill"].(map[string]any)["subtotal"])
	assert.False(t, ts.storage.Has("cart:session:sess-1"))
}

func TestCart_Quote(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, guest, http.MethodPost, "/cart/items", shirtSteamIron(2))

	resp, body := ts.do(t, guest, http.MethodPost, "/cart/quote", map[string]any{"coupon_code": "save20"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "BelowMinimumOrderValue", body["reason"])

	ts.do(t, guest, http.MethodPost, "/cart/items", shirtSteamIron(4))
	resp, body = ts.do(t, guest, http.MethodPost, "/cart/quote", map[string]any{"coupon_code": "save20"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SAVE20", body["coupon_code"])
	assert.Equal(t, "50.00", body["discount"])

	resp, body = ts.do(t, guest, http.MethodPost, "/cart/quote", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.00", body["discount"])
}

func TestFeaturedCoupons(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/coupons/featured")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "SAVE20", out[0]["code"])
	assert.Equal(t, "50.00", out[0]["max_discount_amount"])
}

func TestCheckout(t *testing.T) {
	ts := newTestServer(t)
	req := map[string]any{"address_id": "addr-1", "delivery_slot": "morning"}

	resp, body := ts.do(t, guest, http.MethodPost, "/checkout", req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "NotAuthorized", body["reason"])
	assert.Empty(t, ts.orders.placed)

	resp, body = ts.do(t, alice, http.MethodPost, "/checkout", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, ts.orders.placed, 1)
	assert.Equal(t, "alice", ts.orders.placed[0].UserID)
	assert.Equal(t, orders.SlotMorning, ts.orders.placed[0].DeliverySlot)
	assert.NotEmpty(t, ts.orders.placed[0].TraceID)

	assert.Equal(t, "2026-10-17", body["pickup_date"])
	assert.Equal(t, "9:00 AM - 12:00 PM", body["slot_window"])
	assert.Equal(t, "97.20", body["bill"].(map[string]any)["total"])
}

func TestOrders_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, alice, http.MethodGet, "/orders/IX1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := ts.do(t, alice, http.MethodPost, "/orders/IX1/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", body["kind"])

	ts.orders.getErr = apperr.Unavailable("get order", errors.New("dial tcp: refused"))
	resp, body = ts.do(t, alice, http.MethodGet, "/orders/IX1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "get order", body["error"])

	ts.orders.getErr = errors.New("boom")
	resp, body = ts.do(t, alice, http.MethodGet, "/orders/IX1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", body["error"])
}

func TestAddresses(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, guest, http.MethodGet, "/addresses", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := ts.do(t, alice, http.MethodPost, "/addresses", map[string]any{
		"full_address": "12 MG Road", "city": "Bengaluru", "state": "Karnataka", "pincode": "560001",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["is_default"])
	require.Len(t, ts.addresses.added, 1)
	assert.Equal(t, "560001", ts.addresses.added[0].Pincode)

	resp, body = ts.do(t, alice, http.MethodPost, "/addresses", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidJSON", body["reason"])
}
