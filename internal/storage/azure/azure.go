// Package azure stores export archives in Azure Blob Storage. Archive links
// are read-only SAS URLs signed with the account's shared key.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
	"github.com/MiRedo238/Chemsphere-sub000/pkg/checksum"
)

const checksumMetaKey = "sha256"

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Azure)
	})
}

// AzureStorage implements storage.Storage on one container.
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// New creates a client for the account's public blob endpoint.
func New(cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	return newWithServiceURL(fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName), cfg)
}

func newWithServiceURL(serviceURL string, cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	return &AzureStorage{client: client, containerName: cfg.ContainerName}, nil
}

func isNotFound(err error) bool {
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func (s *AzureStorage) blobClient(p string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(p)
}

// Put uploads a block blob with the digest kept in blob metadata.
func (s *AzureStorage) Put(ctx context.Context, p string, r io.Reader, contentType string) (*storage.Object, error) {
	key, err := storage.CleanPath(p)
	if err != nil {
		return nil, err
	}
	cr := checksum.NewReader(r)
	data, err := io.ReadAll(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := cr.Sum()

	opts := &blockblob.UploadOptions{
		Metadata: map[string]*string{checksumMetaKey: &sum},
	}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	bb := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlockBlobClient(key)
	if _, err := bb.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), opts); err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	return &storage.Object{
		Path:         key,
		Size:         cr.Size(),
		Checksum:     sum,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *AzureStorage) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := s.blobClient(p).DownloadStream(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}
	return resp.Body, nil
}

func (s *AzureStorage) Delete(ctx context.Context, p string) error {
	if _, err := s.blobClient(p).Delete(ctx, nil); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}

// URL returns a read-only SAS link valid for ttl.
func (s *AzureStorage) URL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	if ttl <= 0 {
		ttl = storage.DefaultURLTTL
	}

	now := time.Now().UTC()
	start := now.Add(-5 * time.Minute) // clock skew
	u, err := s.blobClient(p).GetSASURL(sas.BlobPermissions{Read: true}, now.Add(ttl), &blob.GetSASURLOptions{StartTime: &start})
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS URL: %w", err)
	}
	return u, nil
}

func (s *AzureStorage) Exists(ctx context.Context, p string) (bool, error) {
	if _, err := s.blobClient(p).GetProperties(ctx, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}
	return true, nil
}

func (s *AzureStorage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	var objects []storage.Object
	pager := s.client.NewListBlobsFlatPager(s.containerName, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			obj := storage.Object{Path: *item.Name}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					obj.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					obj.LastModified = *props.LastModified
				}
				if props.ContentType != nil {
					obj.ContentType = *props.ContentType
				}
			}
			objects = append(objects, obj)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path > objects[j].Path })
	return objects, nil
}

// EnsureContainer creates the container, tolerating one that already exists.
func (s *AzureStorage) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.containerName, nil)
	var re *azcore.ResponseError
	if err != nil && !(errors.As(err, &re) && re.StatusCode == http.StatusConflict) {
		return fmt.Errorf("failed to create container: %w", err)
	}
	return nil
}
