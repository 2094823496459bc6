package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Queue key the platform workers consume from (preference learning,
// notifications, draft cleanup). Ledger correctness never depends on these
// being delivered.
const QueueKey = "ledger:events"

// Event types published by the core.
const (
	TypePlaceholderMaterialized = "placeholder.materialized"
	TypeEarningPosted           = "earning.posted"
	TypeResolutionCompleted     = "resolution.completed"
	TypeWithdrawalSettled       = "withdrawal.settled"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

// Publisher pushes side-effect events to Redis. Fire-and-forget: publish
// errors are logged and swallowed, and a nil Publisher or nil client is a
// no-op so services can run without Redis in tests.
type Publisher struct {
	Rdb *redis.Client
}

// Publish LPUSHes one JSON envelope onto the queue.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload interface{}) {
	if p == nil || p.Rdb == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := json.Marshal(Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event marshal failed")
		return
	}
	if err := p.Rdb.LPush(ctx, QueueKey, b).Err(); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event publish failed")
	}
}
