package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"
)

var _ Store = (*BadgerStore)(nil)

type badgerObject struct {
	Data        []byte
	ContentType string
	UpdatedAt   time.Time
}

// BadgerStore keeps objects in an embedded Badger database.
type BadgerStore struct {
	store *badgerhold.Store
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerStore{store: store}, nil
}

func (s *BadgerStore) Exists(ctx context.Context, key string) (bool, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	var obj badgerObject
	err = s.store.Get(cleaned, &obj)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

func (s *BadgerStore) Read(ctx context.Context, key string) ([]byte, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	var obj badgerObject
	err = s.store.Get(cleaned, &obj)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if obj.Data == nil {
		return []byte{}, nil
	}
	return obj.Data, nil
}

func (s *BadgerStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}

	obj := badgerObject{
		Data:        data,
		ContentType: contentType,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.Upsert(cleaned, &obj); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
