// Package couponusage counts coupon redemptions from OrderPlaced events.
package couponusage

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	kafkax "github.com/ariefcatur/go-laundry-cart/internal/kafka"
	"github.com/ariefcatur/go-laundry-cart/internal/orders"
	"github.com/ariefcatur/go-laundry-cart/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const dedupScope = "couponusage"

type Counter interface {
	IncrementUsage(ctx context.Context, code string) error
}

type Service struct {
	Coupons Counter
	Redis   *redis.Client
	Log     *zap.Logger
}

// HandleOrderPlaced is installed as the consumer handler. Each event id is
// counted at most once. A failed increment releases the claim and returns
// the error; the consumer retries the same message before committing past it.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, "x-event-type"); t != "" && t != orders.EventOrderPlaced {
		return nil
	}
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		s.Log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.CouponCode == "" {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, dedupScope, env.EventID)
	claimed, err := s.Redis.SetNX(ctx, key, p.OrderID, redisx.TTLDedup).Result()
	if err != nil {
		return apperr.Unavailable("claim event", err)
	}
	if !claimed {
		return nil
	}

	if err := s.Coupons.IncrementUsage(ctx, p.CouponCode); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.Log.Warn("coupon gone, usage not counted", zap.String("coupon", p.CouponCode), zap.String("order_id", p.OrderID))
			return nil
		}
		_ = s.Redis.Del(ctx, key).Err()
		return err
	}
	s.Log.Info("coupon usage counted", zap.String("coupon", p.CouponCode), zap.String("order_id", p.OrderID))
	return nil
}
