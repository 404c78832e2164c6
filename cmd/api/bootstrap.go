package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/imrishuroy/go-shipment-tracker/internal/aws"
	"github.com/imrishuroy/go-shipment-tracker/internal/config"
	"github.com/imrishuroy/go-shipment-tracker/internal/idempotency"
	"github.com/imrishuroy/go-shipment-tracker/internal/metrics"
	"github.com/imrishuroy/go-shipment-tracker/internal/platform/db"
	"github.com/imrishuroy/go-shipment-tracker/internal/shipments"
)

type schemaStore interface {
	EnsureSchema(ctx context.Context) error
}

// stores is the storage backend selected by configuration.
type stores struct {
	Shipments   shipments.Store
	Idempotency idempotency.Store

	db        *sql.DB
	closeOnce sync.Once
}

// Close releases the SQLite handle, if any. Safe to call more than once.
func (s *stores) Close() {
	s.closeOnce.Do(func() {
		if s.db == nil {
			return
		}
		if err := s.db.Close(); err != nil {
			log.Printf("close database: %v", err)
		}
	})
}

// openStores builds both stores for the configured backend and initializes
// their schema exactly once.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}
	var schemas []schemaStore

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		conn, err := db.OpenSQLite(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		ship := shipments.NewSQLiteStore(conn)
		idem := idempotency.NewSQLiteStore(conn, cfg.Idempotency.TTL)
		st.db = conn
		st.Shipments, st.Idempotency = ship, idem
		schemas = []schemaStore{ship, idem}
		log.Printf("storage backend=sqlite path=%s", cfg.Storage.DatabasePath)

	case config.BackendDynamoDB:
		clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("init aws clients: %w", err)
		}
		ship := shipments.NewDynamoStore(clients.DynamoDB, cfg.Storage.ShipmentsTable)
		idem := idempotency.NewDynamoStore(clients.DynamoDB, cfg.Idempotency.Table, cfg.Idempotency.TTL)
		st.Shipments, st.Idempotency = ship, idem
		schemas = []schemaStore{ship, idem}
		log.Printf("storage backend=dynamodb shipments_table=%s idempotency_table=%s",
			cfg.Storage.ShipmentsTable, cfg.Idempotency.Table)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	for _, s := range schemas {
		if err := s.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return st, nil
}

// newRecorder returns the configured metrics sink. The registry is non-nil
// only for the prometheus backend and backs GET /metrics.
func newRecorder(ctx context.Context, cfg *config.Config) (metrics.Recorder, *prometheus.Registry, error) {
	switch cfg.Metrics.Backend {
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return metrics.NewPrometheus(reg), reg, nil
	case config.MetricsCloudWatch:
		clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, fmt.Errorf("init aws clients: %w", err)
		}
		return aws.NewMetricPublisher(clients.CloudWatch, cfg.Metrics.Namespace), nil, nil
	default:
		return metrics.Nop{}, nil, nil
	}
}
