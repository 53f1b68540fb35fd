package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recPub struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (p *recPub) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, value)
}

func (p *recPub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *recPub) last(t *testing.T) orders.Envelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.msgs)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(p.msgs[len(p.msgs)-1], &env))
	return env
}

type testAPI struct {
	router  *chi.Mux
	signer  *auth.TokenSigner
	store   *orders.MemStore
	created *recPub
	status  *recPub
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	store := orders.NewMemStore()
	store.SeedProduct(catalog.Product{ID: 1, Name: "Kopi Arabica", PriceCents: 1500, Stock: 5, CategoryID: 1})
	store.SeedProduct(catalog.Product{ID: 2, Name: "Teh Melati", PriceCents: 900, Stock: 3, CategoryID: 1})

	signer := auth.NewTokenSigner("test-secret", time.Hour)
	created := &recPub{}
	status := &recPub{}

	oh := &OrdersHandler{
		Service:         orders.NewService(store),
		Query:           orders.NewQuery(store),
		CreatedProducer: created,
		StatusProducer:  status,
		ServiceName:     "shop-api-test",
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	router := NewRouter()
	oh.Register(router, signer)

	return &testAPI{router: router, signer: signer, store: store, created: created, status: status}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, userID int64, isAdmin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if userID != 0 {
		token, _, err := a.signer.Sign(userID, isAdmin)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body map[string]apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestPlaceOrderEndpoint(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
		Items: []orders.Line{{ProductID: 1, Qty: 2}},
	}, 7, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp placeOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.OrderID)
	assert.Equal(t, int64(3000), resp.TotalCents)

	// event order.created terbit setelah commit
	require.Equal(t, 1, api.created.count())
	env := api.created.last(t)
	assert.Equal(t, orders.EventOrderCreated, env.EventType)

	p, _ := api.store.Product(1)
	assert.Equal(t, 3, p.Stock)
}

func TestPlaceOrderEndpoint_Unauthorized(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
		Items: []orders.Line{{ProductID: 1, Qty: 1}},
	}, 0, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, api.created.count())
}

func TestPlaceOrderEndpoint_ClientErrors(t *testing.T) {
	api := setupAPI(t)

	cases := []struct {
		name     string
		items    []orders.Line
		wantCode string
	}{
		{"empty", nil, "empty_order"},
		{"bad qty", []orders.Line{{ProductID: 1, Qty: 0}}, "invalid_quantity"},
		{"unknown product", []orders.Line{{ProductID: 42, Qty: 1}}, "product_not_found"},
		{"insufficient", []orders.Line{{ProductID: 2, Qty: 999}}, "insufficient_stock"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{Items: c.items}, 7, false)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, c.wantCode, errCode(t, rec).Code)
		})
	}

	// tidak ada efek parsial dari request yang gagal
	p1, _ := api.store.Product(1)
	p2, _ := api.store.Product(2)
	assert.Equal(t, 5, p1.Stock)
	assert.Equal(t, 3, p2.Stock)
	assert.Equal(t, 0, api.created.count())
}

func TestPlaceOrderEndpoint_InsufficientStockDetails(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
		Items: []orders.Line{{ProductID: 2, Qty: 999}},
	}, 7, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	e := errCode(t, rec)
	assert.Equal(t, "insufficient_stock", e.Code)
	assert.Equal(t, int64(2), e.ProductID)
	assert.Equal(t, 3, e.Available)
	assert.Equal(t, 999, e.Requested)
}

func TestListMyOrdersEndpoint(t *testing.T) {
	api := setupAPI(t)

	for i := 0; i < 2; i++ {
		rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
			Items: []orders.Line{{ProductID: 1, Qty: 1}},
		}, 7, false)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
		Items: []orders.Line{{ProductID: 2, Qty: 1}},
	}, 8, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/orders", nil, 7, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []orders.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine, 2)
}

func TestGetOrderEndpoint_Visibility(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
		Items: []orders.Line{{ProductID: 1, Qty: 1}},
	}, 7, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp placeOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	path := fmt.Sprintf("/orders/%d", resp.OrderID)

	// pemilik
	rec = api.do(t, http.MethodGet, path, nil, 7, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var o orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Kopi Arabica", o.Items[0].ProductName)
	assert.Equal(t, int64(1500), o.Items[0].PriceCents)

	// user lain
	rec = api.do(t, http.MethodGet, path, nil, 8, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admin
	rec = api.do(t, http.MethodGet, path, nil, 99, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	// tidak ada
	rec = api.do(t, http.MethodGet, "/orders/12345", nil, 7, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStatusEndpoint(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
		Items: []orders.Line{{ProductID: 1, Qty: 1}},
	}, 7, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp placeOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	path := fmt.Sprintf("/admin/orders/%d/status", resp.OrderID)

	// non-admin ditolak gate
	rec = api.do(t, http.MethodPut, path, statusReq{Status: "CONFIRMED"}, 7, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admin sukses
	rec = api.do(t, http.MethodPut, path, statusReq{Status: "CONFIRMED"}, 99, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, 1, api.status.count())
	env := api.status.last(t)
	assert.Equal(t, orders.EventOrderStatusChanged, env.EventType)

	// transisi invalid
	rec = api.do(t, http.MethodPut, path, statusReq{Status: "PENDING"}, 99, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", errCode(t, rec).Code)

	// status tidak dikenal
	rec = api.do(t, http.MethodPut, path, statusReq{Status: "LOST"}, 99, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", errCode(t, rec).Code)

	// order tidak ada
	rec = api.do(t, http.MethodPut, "/admin/orders/9999/status", statusReq{Status: "CONFIRMED"}, 99, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// status change tidak menyentuh stok
	p, _ := api.store.Product(1)
	assert.Equal(t, 4, p.Stock)
}

func TestAdminListEndpoint(t *testing.T) {
	api := setupAPI(t)

	for i := 0; i < 3; i++ {
		rec := api.do(t, http.MethodPost, "/orders", placeOrderReq{
			Items: []orders.Line{{ProductID: 1, Qty: 1}},
		}, int64(i+1), false)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// non-admin ditolak
	rec := api.do(t, http.MethodGet, "/admin/orders/", nil, 7, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/admin/orders/?limit=2&offset=0", nil, 99, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []orders.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page, 2)
}
