package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rocjay1/spend-audit/internal/models"
)

const (
	esIndex = "spend-audit"
	esFlush = 2048

	envEsAddr = "ELASTICSEARCH_SERVICE_HOST"
	envEsPort = "ELASTICSEARCH_SERVICE_PORT"
)

type ElasticsearchV8 struct {
	addresses []string
}

// NewElasticsearchV8 returns a bulk-indexing store. Without urls it reads
// ELASTICSEARCH_SERVICE_HOST and ELASTICSEARCH_SERVICE_PORT.
func NewElasticsearchV8(urls ...string) Store {
	if len(urls) == 0 {
		address := os.Getenv(envEsAddr)
		port := os.Getenv(envEsPort)
		if port == "" {
			port = "9200"
		}
		if address == "" {
			address = "localhost"
		}
		urls = []string{fmt.Sprintf("http://%s:%s", address, port)}
	}

	return &ElasticsearchV8{addresses: urls}
}

func (e *ElasticsearchV8) Write(ctx context.Context, runID string, ledger []models.Transaction) error {
	retryBackoff := backoff.NewExponentialBackOff()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     e.addresses,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: 5,
	})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         esIndex,
		FlushBytes:    esFlush,
		Client:        es,
		NumWorkers:    4,
		FlushInterval: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	if _, err := es.Indices.Create(esIndex); err != nil {
		slog.Warn("attempted to create index", "index", esIndex, "error", err)
	}

	for i, t := range ledger {
		data, err := json.Marshal(NewDocument(runID, t))
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: fmt.Sprintf("%s-%d", runID, i),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					slog.Error("failed to index ledger row", "document_id", item.DocumentID, "error", err)
					return
				}
				slog.Error("failed to index ledger row", "document_id", item.DocumentID, "type", res.Error.Type, "reason", res.Error.Reason)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to queue document: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("failed to flush bulk indexer: %w", err)
	}

	stats := bi.Stats()
	if stats.NumFailed > 0 {
		slog.Error("indexed ledger with errors", "run_id", runID, "flushed", stats.NumFlushed, "failed", stats.NumFailed)
		return fmt.Errorf("failed indexing %d docs", stats.NumFailed)
	}
	slog.Info("indexed ledger", "run_id", runID, "flushed", stats.NumFlushed)
	return nil
}
