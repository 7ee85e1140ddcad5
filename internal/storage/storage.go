// Package storage defines the Storage interface behind CSV export archives
// and the helpers that name and write them.
//
// Backends register themselves with the factory from an init() function in
// their own package; the server blank-imports the backends it ships with:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// CSVContentType is stored with every export archive.
const CSVContentType = "text/csv; charset=utf-8"

// DefaultURLTTL is how long a signed archive link stays valid.
const DefaultURLTTL = 15 * time.Minute

// Storage is a flat object store keyed by slash-separated paths.
type Storage interface {
	// Put stores the content of r under p, replacing any existing object.
	Put(ctx context.Context, p string, r io.Reader, contentType string) (*Object, error)

	// Open returns the object's content; ErrNotFound when absent.
	Open(ctx context.Context, p string) (io.ReadCloser, error)

	// Delete removes an object; deleting a missing object is not an error.
	Delete(ctx context.Context, p string) error

	// URL returns a link to the object. Cloud backends sign it for ttl.
	URL(ctx context.Context, p string, ttl time.Duration) (string, error)

	// Exists reports whether an object is stored under p.
	Exists(ctx context.Context, p string) (bool, error)

	// List returns the objects under prefix, newest first.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Object describes a stored archive.
type Object struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url,omitempty"`
}

// ExportPrefix is the root of every export archive path.
const ExportPrefix = "exports/"

// ArchivePath names the archive for an export taken at t:
// exports/<entity>/<UTC timestamp>.csv.
func ArchivePath(entity string, t time.Time) string {
	return path.Join(ExportPrefix, entity, t.UTC().Format("20060102T150405Z")+".csv")
}

// CleanPath rejects absolute paths and parent references.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty object path")
	}
	c := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if path.IsAbs(c) || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return c, nil
}

// Archive stores data as the export of entity taken at t and returns the
// stored object with a download link.
func Archive(ctx context.Context, s Storage, entity string, t time.Time, data []byte) (*Object, error) {
	p := ArchivePath(entity, t)
	obj, err := s.Put(ctx, p, bytes.NewReader(data), CSVContentType)
	if err != nil {
		return nil, fmt.Errorf("archive %s export: %w", entity, err)
	}
	u, err := s.URL(ctx, p, DefaultURLTTL)
	if err != nil {
		return nil, fmt.Errorf("link %s export: %w", entity, err)
	}
	obj.URL = u
	return obj, nil
}
