package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/rocjay1/spend-audit/internal/models"
)

const runsPartition = "RUNS"

// DatabaseService persists classified ledger rows and run summaries in Azure Table Storage.
type DatabaseService struct {
	serviceClient *aztables.ServiceClient
	ledgerTable   string
	runsTable     string
}

// NewDatabaseService creates a new DatabaseService instance.
func NewDatabaseService() (*DatabaseService, error) {
	tableURL := os.Getenv("TABLE_SERVICE_URL")
	if tableURL == "" {
		return nil, fmt.Errorf("TABLE_SERVICE_URL environment variable is required")
	}

	ledgerTable := os.Getenv("LEDGER_TABLE")
	if ledgerTable == "" {
		ledgerTable = "ledger"
	}

	runsTable := os.Getenv("RUNS_TABLE")
	if runsTable == "" {
		runsTable = "auditruns"
	}

	var client *aztables.ServiceClient

	if isLocal(tableURL) {
		slog.Info("using Azurite credentials for database service")
		name, key := getAzuriteCredentials()
		cred, err := aztables.NewSharedKeyCredential(name, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = aztables.NewServiceClientWithSharedKey(tableURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client with shared key: %w", err)
		}
	} else {
		slog.Info("using default Azure credentials for database service")
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = aztables.NewServiceClient(tableURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create table service client: %w", err)
		}
	}

	svc := &DatabaseService{
		serviceClient: client,
		ledgerTable:   ledgerTable,
		runsTable:     runsTable,
	}

	if err := svc.CreateTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("database service initialized successfully",
		"table_url", tableURL,
		"ledger_table", ledgerTable,
		"runs_table", runsTable,
	)
	return svc, nil
}

// CreateTables ensures all required tables exist.
func (s *DatabaseService) CreateTables(ctx context.Context) error {
	for _, tableName := range []string{s.ledgerTable, s.runsTable} {
		_, err := s.serviceClient.CreateTable(ctx, tableName, nil)
		if err != nil {
			var azErr *azcore.ResponseError
			if errors.As(err, &azErr) && azErr.ErrorCode == "TableAlreadyExists" {
				continue
			}
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}
	return nil
}

func (s *DatabaseService) getClient(tableName string) *aztables.Client {
	return s.serviceClient.NewClient(tableName)
}

// GenerateRowKey derives a deterministic key for a ledger row. index disambiguates
// rows that share every identifying field.
func GenerateRowKey(t models.Transaction, index int) string {
	unique := fmt.Sprintf("%s|%s|%s|%s|%s|%d", t.FormatDate(), t.Name, t.Amount.String(), t.Source, t.Type, index)
	hash := sha256.Sum256([]byte(unique))
	return hex.EncodeToString(hash[:])
}

// ledgerEntity maps one classified row onto a table entity.
func ledgerEntity(runID, rowKey string, t models.Transaction) map[string]any {
	return map[string]any{
		"PartitionKey":    runID,
		"RowKey":          rowKey,
		"Date":            t.FormatDate(),
		"Name":            t.Name,
		"Amount":          t.Amount.StringFixed(2),
		"AnalysisStatus":  t.AnalysisStatus.String(),
		"ExclusionReason": t.Exclusion.String(),
		"Category":        string(t.Category),
		"Source":          t.Source,
		"Type":            t.Type,
		"Status":          t.Status,
		"TransactionID":   t.TransactionID,
		"SchemaVersion":   models.LedgerSchemaVersion,
	}
}

// SaveLedger writes a run's classified ledger into its own partition using batched upserts.
func (s *DatabaseService) SaveLedger(ctx context.Context, runID string, ledger []models.Transaction) error {
	if len(ledger) == 0 {
		return nil
	}
	client := s.getClient(s.ledgerTable)

	occurrences := make(map[string]int)
	batch := make([]aztables.TransactionAction, 0, len(ledger))
	for _, t := range ledger {
		sig := GenerateRowKey(t, 0)
		idx := occurrences[sig]
		occurrences[sig]++

		entityJSON, err := json.Marshal(ledgerEntity(runID, GenerateRowKey(t, idx), t))
		if err != nil {
			return fmt.Errorf("failed to marshal ledger entity: %w", err)
		}
		batch = append(batch, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeInsertReplace,
			Entity:     entityJSON,
		})
	}

	// Entity group transactions are limited to 100 operations.
	const batchSize = 100
	for i := 0; i < len(batch); i += batchSize {
		end := min(i+batchSize, len(batch))
		if _, err := client.SubmitTransaction(ctx, batch[i:end], nil); err != nil {
			return fmt.Errorf("failed to submit ledger batch %d-%d: %w", i, end, err)
		}
	}

	slog.Info("saved ledger rows", "run_id", runID, "rows", len(ledger))
	return nil
}

// SaveRun upserts a run summary.
func (s *DatabaseService) SaveRun(ctx context.Context, run models.AuditRun) error {
	stats, err := json.Marshal(run.Statistics)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}
	entity := map[string]any{
		"PartitionKey":  runsPartition,
		"RowKey":        run.RunID,
		"CreatedAt":     run.CreatedAt.UTC().Format(time.RFC3339),
		"LedgerBlob":    run.LedgerBlob,
		"SchemaVersion": run.Statistics.SchemaVersion,
		"RulesVersion":  run.Statistics.RulesVersion,
		"Included":      run.Statistics.Included,
		"TrueSpend":     run.Statistics.TrueSpend.StringFixed(2),
		"Degraded":      run.Statistics.Degraded(),
		"Statistics":    string(stats),
	}
	if run.Match != nil {
		match, err := json.Marshal(run.Match)
		if err != nil {
			return fmt.Errorf("failed to marshal match summary: %w", err)
		}
		entity["Match"] = string(match)
	}

	entityJSON, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal run entity: %w", err)
	}
	if _, err := s.getClient(s.runsTable).UpsertEntity(ctx, entityJSON, nil); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun returns a run summary, or nil when it does not exist.
func (s *DatabaseService) GetRun(ctx context.Context, runID string) (*models.AuditRun, error) {
	resp, err := s.getClient(s.runsTable).GetEntity(ctx, runsPartition, runID, nil)
	if err != nil {
		var azErr *azcore.ResponseError
		if errors.As(err, &azErr) && azErr.ErrorCode == "ResourceNotFound" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return parseRun(resp.Value)
}

// GetLatestRun returns the most recently created run, or nil when none exists.
func (s *DatabaseService) GetLatestRun(ctx context.Context) (*models.AuditRun, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", runsPartition)
	pager := s.getClient(s.runsTable).NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
	})

	var latest *models.AuditRun
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		for _, entity := range resp.Entities {
			run, err := parseRun(entity)
			if err != nil {
				slog.Warn("skipping unreadable run entity", "error", err)
				continue
			}
			if latest == nil || run.CreatedAt.After(latest.CreatedAt) {
				latest = run
			}
		}
	}
	return latest, nil
}

type runEntity struct {
	RowKey     string `json:"RowKey"`
	CreatedAt  string `json:"CreatedAt"`
	LedgerBlob string `json:"LedgerBlob"`
	Statistics string `json:"Statistics"`
	Match      string `json:"Match"`
}

func parseRun(raw []byte) (*models.AuditRun, error) {
	var e runEntity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run entity: %w", err)
	}
	run := &models.AuditRun{RunID: e.RowKey, LedgerBlob: e.LedgerBlob}
	if e.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339, e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid CreatedAt %q: %w", e.CreatedAt, err)
		}
		run.CreatedAt = created
	}
	if e.Statistics != "" {
		if err := json.Unmarshal([]byte(e.Statistics), &run.Statistics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal statistics: %w", err)
		}
	}
	if e.Match != "" {
		run.Match = &models.MatchSummary{}
		if err := json.Unmarshal([]byte(e.Match), run.Match); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match summary: %w", err)
		}
	}
	return run, nil
}
