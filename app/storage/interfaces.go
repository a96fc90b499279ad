package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Store is a key-addressed byte store. Keys are slash-separated paths such as
// "dalle2/metadata.csv". Write replaces the whole object; a failed Write must
// not leave a partially written object visible to Read.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Close() error
}

func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("key must be relative: %s", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("key escapes store root: %s", key)
	}
	return cleaned, nil
}
