package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ovomonie/backend/internal/metrics"
)

const queueKey = "notification_queue"

// Message is one queued user-facing notification.
type Message struct {
	AccountID string                 `json:"account_id"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}

// Dispatcher queues transaction notifications on Redis. It is strictly
// best-effort: a queue failure is logged and swallowed, never surfaced to
// the transfer path that triggered it. Without Redis it degrades to logging.
type Dispatcher struct {
	redis   *redis.Client
	metrics *metrics.Metrics
}

func NewDispatcher(redisClient *redis.Client, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{redis: redisClient, metrics: m}
}

func (d *Dispatcher) Notify(accountID, template string, data map[string]interface{}) {
	msg := Message{
		AccountID: accountID,
		Template:  template,
		Data:      data,
		CreatedAt: time.Now(),
	}

	if d.redis == nil {
		log.Printf("[NOTIFY] %s for account %s (no queue configured)", template, accountID)
		d.count("logged")
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[NOTIFY] Failed to encode notification for %s: %v", accountID, err)
		d.count("error")
		return
	}

	if err := d.redis.RPush(context.Background(), queueKey, string(payload)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue notification for %s: %v", accountID, err)
		d.count("error")
		return
	}
	d.count("queued")
}

func (d *Dispatcher) count(result string) {
	if d.metrics != nil {
		d.metrics.NotificationsOut.WithLabelValues(result).Inc()
	}
}
