// Package blob stores item photos on a local directory, in memory or in an
// S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Driver names a storage backend.
type Driver string

// Supported drivers.
const (
	DriverFilesystem Driver = "fs"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob not found")

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// Store is a flat key/value blob store. Put replaces any existing blob.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
	Driver() Driver
}

// CleanKey rejects empty, absolute and escaping keys and returns the
// slash-separated canonical form.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty blob key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid blob key %q", key)
		}
	}
	return clean, nil
}

// URL returns the public URL under which the API serves key.
func URL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/media/" + key
}
