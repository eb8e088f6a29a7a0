package logging

import (
	"encoding/json"
	"log"
	"time"
)

type Fields struct {
	Service    string `json:"service"`
	Op         string `json:"op,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
	OrderID    int64  `json:"order_id,omitempty"`
	ProductID  int64  `json:"product_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Log(fields Fields) {
	payload := map[string]any{
		"service":     fields.Service,
		"op":          fields.Op,
		"customer_id": fields.CustomerID,
		"order_id":    fields.OrderID,
		"product_id":  fields.ProductID,
		"event_id":    fields.EventID,
		"status":      fields.Status,
		"duration_ms": fields.DurationMS,
		"message":     fields.Message,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
