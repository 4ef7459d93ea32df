package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/ranker"
)

//go:generate go tool mockgen -source=blob.go -destination=blob_mock_test.go -package=modelstore

// blobClient is just an interface over [*azblob.Client]
type blobClient interface {
	// UploadBuffer maps to [azblob.Client.UploadBuffer]
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)

	// DownloadStream maps to [azblob.Client.DownloadStream]
	DownloadStream(ctx context.Context, containerName string, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// BlobStore keeps artifacts in Azure Blob Storage. Paths are either
// azblob://container/blob or a bare blob name in the default container.
type BlobStore struct {
	client    blobClient
	container string
}

// NewBlobStore connects to accountURL (https://<account>.blob.core.windows.net/)
// with the given credential.
func NewBlobStore(accountURL, container string, cred azcore.TokenCredential) (*BlobStore, error) {
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client for %s: %w", accountURL, err)
	}
	return &BlobStore{client: client, container: container}, nil
}

// NewDefaultBlobStore authenticates with the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewDefaultBlobStore(accountURL, container string) (*BlobStore, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}
	return NewBlobStore(accountURL, container, cred)
}

func (s *BlobStore) locate(path string) (string, string, error) {
	if IsBlobPath(path) {
		return ParseBlobPath(path)
	}
	if s.container == "" {
		return "", "", fmt.Errorf("blob path %q has no container and no default container is configured", path)
	}
	return s.container, path, nil
}

func (s *BlobStore) Save(ctx context.Context, t ranker.Transformer, path string) error {
	container, name, err := s.locate(path)
	if err != nil {
		return err
	}
	data, err := Marshal(t)
	if err != nil {
		return err
	}
	if _, err := s.client.UploadBuffer(ctx, container, name, data, nil); err != nil {
		return fmt.Errorf("uploading model to %s/%s: %w", container, name, err)
	}
	return nil
}

func (s *BlobStore) Load(ctx context.Context, path string) (ranker.Transformer, features.Schema, error) {
	container, name, err := s.locate(path)
	if err != nil {
		return nil, features.Schema{}, err
	}
	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, features.Schema{}, fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	if err != nil {
		return nil, features.Schema{}, fmt.Errorf("downloading model %s/%s: %w", container, name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, features.Schema{}, fmt.Errorf("reading model %s/%s: %w", container, name, err)
	}
	art, err := Unmarshal(buf.Bytes())
	if err != nil {
		return nil, features.Schema{}, fmt.Errorf("loading model %s/%s: %w", container, name, err)
	}
	return art.Transformer, art.Schema, nil
}
