package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rocjay1/spend-audit/internal/models"
)

// BlobService stores uploaded source exports and classified ledgers in Azure Blob Storage.
type BlobService struct {
	client           *azblob.Client
	sourcesContainer string
	ledgersContainer string
}

// NewBlobService creates a new BlobService instance.
func NewBlobService() (*BlobService, error) {
	blobURL := os.Getenv("BLOB_SERVICE_URL")
	if blobURL == "" {
		return nil, fmt.Errorf("BLOB_SERVICE_URL environment variable is required")
	}

	sourcesContainer := os.Getenv("SOURCES_CONTAINER")
	if sourcesContainer == "" {
		sourcesContainer = "sources"
	}
	ledgersContainer := os.Getenv("LEDGERS_CONTAINER")
	if ledgersContainer == "" {
		ledgersContainer = "ledgers"
	}

	slog.Info("initializing blob service", "blob_url", blobURL)
	var client *azblob.Client

	if isLocal(blobURL) {
		slog.Info("using Azurite shared key credentials for blob service")
		name, key := getAzuriteCredentials()
		cred, err := azblob.NewSharedKeyCredential(name, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client with shared key: %w", err)
		}
	} else {
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(blobURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
	}

	slog.Info("blob service initialized successfully",
		"sources_container", sourcesContainer,
		"ledgers_container", ledgersContainer,
	)
	return &BlobService{
		client:           client,
		sourcesContainer: sourcesContainer,
		ledgersContainer: ledgersContainer,
	}, nil
}

// UploadSource stores a raw source export.
func (s *BlobService) UploadSource(ctx context.Context, blobName string, content []byte, label string) error {
	return s.upload(ctx, s.sourcesContainer, blobName, content, map[string]*string{
		"source_label": &label,
	})
}

// DownloadSource returns a raw source export. found is false when the blob does not exist.
func (s *BlobService) DownloadSource(ctx context.Context, blobName string) ([]byte, bool, error) {
	return s.download(ctx, s.sourcesContainer, blobName)
}

// UploadLedger stores a classified ledger CSV stamped with its schema and rule set versions.
func (s *BlobService) UploadLedger(ctx context.Context, blobName, text, rulesVersion string) error {
	schema := models.LedgerSchemaVersion
	return s.upload(ctx, s.ledgersContainer, blobName, []byte(text), map[string]*string{
		"schema_version": &schema,
		"rules_version":  &rulesVersion,
	})
}

// DownloadLedger returns a ledger CSV. found is false when the blob does not exist.
func (s *BlobService) DownloadLedger(ctx context.Context, blobName string) (string, bool, error) {
	data, found, err := s.download(ctx, s.ledgersContainer, blobName)
	return string(data), found, err
}

func (s *BlobService) upload(ctx context.Context, containerName, blobName string, data []byte, metadata map[string]*string) error {
	slog.Info("uploading blob", "container", containerName, "blob_name", blobName, "size_bytes", len(data))
	_, err := s.client.CreateContainer(ctx, containerName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		slog.Warn("failed to create container", "container", containerName, "error", err)
	}

	_, err = s.client.UploadBuffer(ctx, containerName, blobName, data, &azblob.UploadBufferOptions{
		Metadata: metadata,
	})
	if err != nil {
		slog.Error("failed to upload blob", "container", containerName, "blob_name", blobName, "error", err)
		return fmt.Errorf("failed to upload blob %s/%s: %w", containerName, blobName, err)
	}
	slog.Info("successfully uploaded blob", "container", containerName, "blob_name", blobName)
	return nil
}

func (s *BlobService) download(ctx context.Context, containerName, blobName string) ([]byte, bool, error) {
	slog.Info("downloading blob", "container", containerName, "blob_name", blobName)
	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			slog.Warn("blob not found", "container", containerName, "blob_name", blobName)
			return nil, false, nil
		}
		slog.Error("failed to download blob", "container", containerName, "blob_name", blobName, "error", err)
		return nil, false, fmt.Errorf("failed to download blob %s/%s: %w", containerName, blobName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob content: %w", err)
	}

	slog.Info("successfully downloaded blob", "container", containerName, "blob_name", blobName, "size_bytes", len(data))
	return data, true, nil
}
