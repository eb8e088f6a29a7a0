package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/kafka"
	"github.com/ragavivenugopal/ecom-app/pkg/logging"
	"github.com/ragavivenugopal/ecom-app/pkg/metrics"
	"github.com/ragavivenugopal/ecom-app/pkg/outbox"
)

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	PollInterval time.Duration
	BatchSize    int
}

func readCfg() (cfg, error) {
	port := getenv("PORT", "8080")
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	brokers := getenv("KAFKA_BROKERS", "")
	if brokers == "" {
		return cfg{}, errors.New("KAFKA_BROKERS is required")
	}
	pollMS, _ := strconv.Atoi(getenv("POLL_INTERVAL_MS", "500"))
	batch, _ := strconv.Atoi(getenv("BATCH_SIZE", "100"))
	return cfg{
		Port:         port,
		DatabaseURL:  db,
		KafkaBrokers: brokers,
		PollInterval: time.Duration(pollMS) * time.Millisecond,
		BatchSize:    batch,
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

	srvMetrics := metrics.NewServerMetrics("outbox_relay")
	opsMetrics := metrics.NewOpsMetrics("outbox_relay")

	client := kafka.NewClient(cfg.KafkaBrokers)
	go relayLoop(st, client, cfg, opsMetrics)

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
	log.Printf("outbox-relay listening on :%s (poll=%s, batch=%d)", cfg.Port, cfg.PollInterval, cfg.BatchSize)
	log.Fatal(srv.ListenAndServe())
}

// relayLoop drains pending outbox records into Kafka. A record is marked sent
// only after the write is acknowledged, so a crash between publish and mark
// replays the event - consumers deduplicate on event_id.
func relayLoop(st *store.Store, client *kafka.Client, cfg cfg, ops *metrics.OpsMetrics) {
	writers := map[string]*kafkago.Writer{}
	writerFor := func(topic string) *kafkago.Writer {
		if w, ok := writers[topic]; ok {
			return w
		}
		w := client.NewWriter(topic)
		writers[topic] = w
		return w
	}

	for {
		time.Sleep(cfg.PollInterval)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pending, err := outbox.FetchPending(ctx, st.Pool, cfg.BatchSize)
		if err != nil {
			cancel()
			log.Printf("outbox fetch error: %v", err)
			continue
		}

		for _, rec := range pending {
			start := time.Now()
			if err := kafka.PublishRaw(ctx, writerFor(rec.Topic), rec.Key, rec.Payload); err != nil {
				log.Printf("publish error (event %s): %v", rec.EventID, err)
				ops.Ops.WithLabelValues("outbox_publish", "error").Inc()
				break
			}
			if err := outbox.MarkSent(ctx, st.Pool, rec.ID); err != nil {
				log.Printf("mark sent error (event %s): %v", rec.EventID, err)
				ops.Ops.WithLabelValues("outbox_publish", "error").Inc()
				break
			}
			ops.Ops.WithLabelValues("outbox_publish", "ok").Inc()
			ops.LatencyMS.WithLabelValues("outbox_publish").Observe(float64(time.Since(start).Milliseconds()))
			logging.Log(logging.Fields{
				Service: "outbox-relay",
				Op:      "outbox_publish",
				EventID: rec.EventID,
				Status:  "sent",
			})
		}
		cancel()
	}
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
