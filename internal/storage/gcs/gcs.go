// Package gcs stores export archives in Google Cloud Storage. Links are V4
// signed URLs, which need a service account key or signBlob permission.
//
// Credentials come from credentials_json, credentials_file, or Application
// Default Credentials when both are empty. Setting endpoint targets an
// emulator and disables authentication.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	appconfig "github.com/MiRedo238/Chemsphere-sub000/internal/config"
	appstorage "github.com/MiRedo238/Chemsphere-sub000/internal/storage"
	"github.com/MiRedo238/Chemsphere-sub000/pkg/checksum"
)

const checksumMetaKey = "sha256"

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(&cfg.Storage.GCS)
	})
}

// GCSStorage implements storage.Storage on one bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

func clientOptions(cfg *appconfig.GCSStorageConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// New creates the client.
func New(cfg *appconfig.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	if cfg.CredentialsJSON != "" && cfg.CredentialsFile != "" {
		return nil, fmt.Errorf("set only one of gcs credentials_json and credentials_file")
	}

	client, err := storage.NewClient(context.Background(), clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.Bucket}, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Put streams the archive; the digest is attached as object metadata.
func (s *GCSStorage) Put(ctx context.Context, p string, r io.Reader, contentType string) (*appstorage.Object, error) {
	key, err := appstorage.CleanPath(p)
	if err != nil {
		return nil, err
	}
	cr := checksum.NewReader(r)
	data, err := io.ReadAll(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{checksumMetaKey: cr.Sum()}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	obj := &appstorage.Object{
		Path:        key,
		Size:        cr.Size(),
		Checksum:    cr.Sum(),
		ContentType: contentType,
	}
	if attrs := w.Attrs(); attrs != nil {
		obj.LastModified = attrs.Updated
	}
	return obj, nil
}

func (s *GCSStorage) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(p).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", p, appstorage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	return rc, nil
}

func (s *GCSStorage) Delete(ctx context.Context, p string) error {
	err := s.client.Bucket(s.bucket).Object(p).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// URL returns a V4 signed GET link valid for ttl.
func (s *GCSStorage) URL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", p, appstorage.ErrNotFound)
	}
	if ttl <= 0 {
		ttl = appstorage.DefaultURLTTL
	}

	u, err := s.client.Bucket(s.bucket).SignedURL(p, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return u, nil
}

func (s *GCSStorage) Exists(ctx context.Context, p string) (bool, error) {
	if _, err := s.client.Bucket(s.bucket).Object(p).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

func (s *GCSStorage) List(ctx context.Context, prefix string) ([]appstorage.Object, error) {
	var objects []appstorage.Object
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects = append(objects, appstorage.Object{
			Path:         attrs.Name,
			Size:         attrs.Size,
			Checksum:     attrs.Metadata[checksumMetaKey],
			ContentType:  attrs.ContentType,
			LastModified: attrs.Updated,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path > objects[j].Path })
	return objects, nil
}
