// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/storage"
)

const checkpointKey = "checkpoint:run"

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// CheckpointStore implements storage.CheckpointStore on a BadgerDB database.
type CheckpointStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// StoreOption configures a CheckpointStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	inMemory bool
	logger   *slog.Logger
}

// WithInMemory opens the database in memory with no files on disk.
func WithInMemory(inMemory bool) StoreOption {
	return func(c *storeConfig) {
		c.inMemory = inMemory
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) StoreOption {
	return func(c *storeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCheckpointStore opens (creating if necessary) a BadgerDB database at
// filePath and returns a checkpoint store over it.
func NewCheckpointStore(filePath string, opts ...StoreOption) (*CheckpointStore, error) {
	cfg := &storeConfig{logger: slog.Default().With("component", "checkpoint")}
	for _, opt := range opts {
		opt(cfg)
	}

	var badgerOpts badger.Options
	if cfg.inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(filePath, 0755); err != nil {
				return nil, err
			}
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		badgerOpts = badger.DefaultOptions(filePath)
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: cfg.logger}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	return &CheckpointStore{db: db, logger: cfg.logger}, nil
}

// Load returns the stored checkpoint, or (nil, nil) when none exists.
func (s *CheckpointStore) Load(_ context.Context) (*core.Checkpoint, error) {
	var checkpoint *core.Checkpoint

	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(checkpointKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			checkpoint = &core.Checkpoint{}
			return json.Unmarshal(val, checkpoint)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	return checkpoint, nil
}

// Save replaces the stored checkpoint in one transaction.
func (s *CheckpointStore) Save(_ context.Context, checkpoint *core.Checkpoint) error {
	checkpoint.LastUpdatedAt = time.Now().UTC()

	value, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	err = s.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(checkpointKey), value)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		"phase", checkpoint.Phase, "keys", checkpoint.Len())
	return nil
}

// Delete removes the stored checkpoint. Deleting a missing checkpoint is a
// no-op.
func (s *CheckpointStore) Delete(_ context.Context) error {
	err := s.db.Update(func(tx *badger.Txn) error {
		return tx.Delete([]byte(checkpointKey))
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
