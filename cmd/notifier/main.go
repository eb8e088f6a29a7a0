package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/contracts"
	"github.com/ragavivenugopal/ecom-app/pkg/kafka"
	"github.com/ragavivenugopal/ecom-app/pkg/logging"
	"github.com/ragavivenugopal/ecom-app/pkg/metrics"
)

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	Topic        string
	GroupID      string
}

func readCfg() (cfg, error) {
	port := getenv("PORT", "8080")
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	return cfg{
		Port:         port,
		DatabaseURL:  db,
		KafkaBrokers: getenv("KAFKA_BROKERS", ""),
		Topic:        getenv("KAFKA_TOPIC", "ecom.orders"),
		GroupID:      getenv("KAFKA_GROUP_ID", "notifier"),
	}, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer st.Close()

	srvMetrics := metrics.NewServerMetrics("notifier")

	client := kafka.NewClient(cfg.KafkaBrokers)
	if client.Enabled() {
		go consumeEvents(st, client, cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := st.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			srvMetrics.Requests.WithLabelValues("health", "503").Inc()
			srvMetrics.LatencyMS.WithLabelValues("health").Observe(float64(time.Since(start).Milliseconds()))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		srvMetrics.Requests.WithLabelValues("health", "200").Inc()
		srvMetrics.LatencyMS.WithLabelValues("health").Observe(float64(time.Since(start).Milliseconds()))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("notifier listening on :%s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}

func consumeEvents(st *store.Store, client *kafka.Client, cfg cfg) {
	reader := client.NewReader(cfg.Topic, cfg.GroupID)
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("kafka read error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		var evt contracts.Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("event decode error: %v", err)
			continue
		}
		if evt.EventID == "" {
			continue
		}
		if err := saveNotification(context.Background(), st, evt); err != nil {
			log.Printf("notification save error: %v", err)
			continue
		}
		logging.Log(logging.Fields{
			Service:    "notifier",
			Op:         evt.Type,
			CustomerID: evt.CustomerID,
			OrderID:    evt.OrderID,
			EventID:    evt.EventID,
			Status:     "emitted",
		})
	}
}

// saveNotification records the event idempotently: the relay may replay
// events after a crash, so both inserts dedupe on event_id.
func saveNotification(ctx context.Context, st *store.Store, evt contracts.Event) error {
	_, err := st.Pool.Exec(ctx, `INSERT INTO inbox(event_id, received_at)
		VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`, evt.EventID)
	if err != nil {
		return err
	}

	data, _ := json.Marshal(evt.Payload)
	_, err = st.Pool.Exec(ctx, `INSERT INTO notifications(event_id, order_id, customer_id, type, payload)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (event_id) DO NOTHING`,
		evt.EventID, evt.OrderID, evt.CustomerID, evt.Type, string(data))
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
