package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

type Options struct {
	Backend    string
	DataDir    string
	SQLitePath string
	BadgerDir  string
	S3Bucket   string
	S3Prefix   string
	S3Region   string
}

// Open constructs the Store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendLocal, "":
		return NewLocalStore(opts.DataDir)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.DataDir, "image-comb.db")
		}
		return NewSQLiteStore(path)
	case BackendBadger:
		dir := opts.BadgerDir
		if dir == "" {
			dir = filepath.Join(opts.DataDir, "badger")
		}
		return NewBadgerStore(dir)
	case BackendS3:
		return NewS3Store(ctx, opts.S3Bucket, opts.S3Prefix, opts.S3Region)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}
