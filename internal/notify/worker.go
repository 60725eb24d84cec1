package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Worker drains the notification queue and delivers messages. Delivery
// failures are logged and the message is dropped; notifications carry no
// ledger state, so losing one is acceptable and retrying one is not worth
// blocking the queue for.
type Worker struct {
	redis *redis.Client
}

func NewWorker(redisClient *redis.Client) *Worker {
	return &Worker{redis: redisClient}
}

// Run consumes until the context is cancelled. Call in a goroutine.
func (w *Worker) Run(ctx context.Context) {
	if w.redis == nil {
		return
	}
	log.Println("[NOTIFY] Worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[NOTIFY] Worker stopped")
			return
		default:
		}

		result, err := w.redis.BLPop(ctx, 5*time.Second, queueKey).Result()
		if err == redis.Nil || ctx.Err() != nil {
			continue
		}
		if err != nil {
			log.Printf("[NOTIFY] Queue read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
			log.Printf("[NOTIFY] Dropping malformed notification: %v", err)
			continue
		}
		w.deliver(&msg)
	}
}

func (w *Worker) deliver(msg *Message) {
	// SMS/push delivery hangs off here; for now the audit trail is the log.
	log.Printf("[NOTIFY] Delivered %s to account %s (ref %v)", msg.Template, msg.AccountID, msg.Data["reference"])
}
