package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher: dipenuhi *kafkax.Producer; test pakai recorder.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Service *orders.Service
	Query   *orders.Query

	CreatedProducer Publisher // topic order.created
	StatusProducer  Publisher // topic order.status.changed
	Redis           *redis.Client
	ServiceName     string
	Log             *slog.Logger
}

type placeOrderReq struct {
	Items []orders.Line `json:"items"`
}

type placeOrderResp struct {
	OrderID    int64 `json:"order_id"`
	TotalCents int64 `json:"total_cents"`
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux, signer *auth.TokenSigner) {
	r.Group(func(r chi.Router) {
		r.Use(signer.Middleware)
		r.Post("/orders", h.placeOrder)
		r.Get("/orders", h.listMyOrders)
		r.Get("/orders/{id}", h.getOrder)

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", h.adminList)
			r.Put("/{id}/status", h.updateStatus)
		})
	})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, apiError{Code: "unauthorized"})
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.PlaceOrder(ctx, caller.UserID, req.Items)
	if err != nil {
		h.writePlaceOrderErr(w, err)
		return
	}

	// Cache status supaya GET detail cepat; DB tetap kebenaran.
	if h.Redis != nil {
		statusKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
		_ = h.Redis.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, o.Status), redisx.TTLStatusCache).Err()
	}

	h.publishCreated(r, o)
	writeJSON(w, http.StatusCreated, placeOrderResp{OrderID: o.ID, TotalCents: o.TotalCents})
}

func (h *OrdersHandler) writePlaceOrderErr(w http.ResponseWriter, err error) {
	var (
		notFound     *catalog.ProductNotFoundError
		insufficient *catalog.InsufficientStockError
		badQty       *orders.InvalidQuantityError
	)
	switch {
	case errors.Is(err, orders.ErrEmptyOrder):
		writeErr(w, http.StatusBadRequest, apiError{Code: "empty_order"})
	case errors.As(err, &badQty):
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_quantity", ProductID: badQty.ProductID, Requested: badQty.Qty})
	case errors.As(err, &notFound):
		writeErr(w, http.StatusBadRequest, apiError{Code: "product_not_found", ProductID: notFound.ProductID})
	case errors.As(err, &insufficient):
		writeErr(w, http.StatusBadRequest, apiError{
			Code:      "insufficient_stock",
			ProductID: insufficient.ProductID,
			Available: insufficient.Available,
			Requested: insufficient.Requested,
		})
	case errors.Is(err, orders.ErrConflict):
		writeErr(w, http.StatusConflict, apiError{Code: "conflict"})
	default:
		h.Log.Error("place order", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
	}
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.Identity(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Query.OrdersForUser(ctx, caller.UserID)
	if err != nil {
		h.Log.Error("list orders", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	if out == nil {
		out = []orders.Summary{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.Identity(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache detail; cek visibility tetap jalan di data cache
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderDetail, id)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var o orders.Order
			if json.Unmarshal([]byte(s), &o) == nil {
				if !caller.IsAdmin && o.UserID != caller.UserID {
					writeErr(w, http.StatusForbidden, apiError{Code: "forbidden"})
					return
				}
				writeJSON(w, http.StatusOK, &o)
				return
			}
		}
	}

	// 2) fallback DB
	o, err := h.Query.OrderDetail(ctx, id, caller.UserID, caller.IsAdmin)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeErr(w, http.StatusNotFound, apiError{Code: "order_not_found"})
		return
	case errors.Is(err, orders.ErrForbidden):
		writeErr(w, http.StatusForbidden, apiError{Code: "forbidden"})
		return
	case err != nil:
		h.Log.Error("order detail", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}

	if h.Redis != nil {
		if b, err := json.Marshal(o); err == nil {
			key := fmt.Sprintf(redisx.KeyOrderDetail, id)
			_ = h.Redis.Set(ctx, key, b, redisx.TTLDetailCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) adminList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Query.AdminList(ctx, limit, offset)
	if err != nil {
		h.Log.Error("admin list orders", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	if out == nil {
		out = []orders.Summary{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_id"})
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_json"})
		return
	}
	next, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_status", Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prev, err := h.Query.SetStatus(ctx, id, next)
	var badTransition *orders.InvalidTransitionError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeErr(w, http.StatusNotFound, apiError{Code: "order_not_found"})
		return
	case errors.As(err, &badTransition):
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_transition", Message: badTransition.Error()})
		return
	case err != nil:
		h.Log.Error("update status", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}

	// refresh cache status, buang detail basi
	if h.Redis != nil {
		statusKey := fmt.Sprintf(redisx.KeyOrderStatus, id)
		_ = h.Redis.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, next), redisx.TTLStatusCache).Err()
		_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderDetail, id)).Err()
	}

	h.publishStatusChanged(r, id, prev, next)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": next})
}

func (h *OrdersHandler) publishCreated(r *http.Request, o *orders.Order) {
	if h.CreatedProducer == nil {
		return
	}
	items := make([]orders.ItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemSnapshot{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.ServiceName,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: strconv.FormatInt(o.ID, 10),
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Status:     o.Status,
			Items:      items,
			TotalCents: o.TotalCents,
		}),
	}
	h.CreatedProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishStatusChanged(r *http.Request, orderID int64, from, to orders.Status) {
	if h.StatusProducer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.ServiceName,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: orderID,
			From:    from,
			To:      to,
		}),
	}
	h.StatusProducer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
