package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service menjaga cache status/detail order di Redis tetap sinkron dengan
// event order yang sudah committed. Dipasang sebagai handler consumer.
type Service struct {
	Redis       *redis.Client
	ServiceName string
	Log         *slog.Logger
}

func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
		if err := s.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, p.Status), redisx.TTLStatusCache).Err(); err != nil {
			return err
		}
		s.Log.Info("status cache warmed", "order_id", p.OrderID, "status", p.Status)
		return nil

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
		if err := s.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, p.To), redisx.TTLStatusCache).Err(); err != nil {
			return err
		}
		// detail lama sudah basi
		_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderDetail, p.OrderID)).Err()
		s.Log.Info("status cache updated", "order_id", p.OrderID, "from", p.From, "to", p.To)
		return nil
	}
	return nil // event type lain di-ignore
}
