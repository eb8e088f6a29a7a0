// Package outbox implements the transactional outbox: the order engine
// inserts event records through the same transaction that commits the order,
// so an event exists if and only if the write it describes committed. The
// relay drains pending records into Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ragavivenugopal/ecom-app/internal/store"
)

type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// Insert queues an event. Pass the enclosing pgx.Tx as q to make the record
// part of the business transaction.
func Insert(ctx context.Context, q store.Querier, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `INSERT INTO outbox(event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`, eventID, topic, key, data)
	return err
}

func MarkSent(ctx context.Context, q store.Querier, id int64) error {
	_, err := q.Exec(ctx, `UPDATE outbox SET sent_at=now() WHERE id=$1`, id)
	return err
}

func FetchPending(ctx context.Context, q store.Querier, limit int) ([]Record, error) {
	rows, err := q.Query(ctx, `SELECT id, event_id, topic, key, payload, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
