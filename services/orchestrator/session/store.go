// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session persists conversation state in an embedded BadgerDB.
//
// Two key families share one database:
//
//	state:<session-id>        latest session snapshot (JSON)
//	hist:<session-id>:<seq>   one immutable record per completed turn
//
// Snapshots are overwritten on every stage transition; history is
// append-only. Both are removed together by Delete.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// Config holds configuration for the session store.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory.
	Path string

	// InMemory enables in-memory mode for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// TTL is the retention period for snapshots and history entries.
	// Zero keeps everything forever.
	TTL time.Duration

	// GCInterval is how often value log garbage collection runs.
	// Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio before GC rewrites
	// a value log file.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes, 30-day
// retention, GC every 5 minutes.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		TTL:            30 * 24 * time.Hour,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC,
// no TTL.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}
func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the BadgerDB-backed flow.SessionStore implementation.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// the isolation, and the flow engine serializes writers per session.
type Store struct {
	db     *badger.DB
	cfg    Config
	stopCh chan struct{}
	doneCh chan struct{}
}

var _ flow.SessionStore = (*Store)(nil)

// Open opens the store, creating the directory if needed, and starts
// the GC loop when configured. Caller must Close.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create session store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop()
	} else {
		close(s.doneCh)
	}
	return s, nil
}

// Close stops GC and closes the database. Safe to call once.
func (s *Store) Close() error {
	close(s.stopCh)
	<-s.doneCh
	return s.db.Close()
}

func (s *Store) gcLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("Session store value log GC failed", "error", err)
			}
		}
	}
}

func stateKey(sessionId string) []byte {
	return []byte("state:" + sessionId)
}

func histPrefix(sessionId string) []byte {
	return []byte("hist:" + sessionId + ":")
}

func histKey(sessionId string, seq int64) []byte {
	// Zero-padded so lexical key order is chronological order.
	return []byte(fmt.Sprintf("hist:%s:%020d", sessionId, seq))
}

// Get loads the latest snapshot, returning (nil, nil) when the session
// does not exist.
func (s *Store) Get(ctx context.Context, sessionId string) (*flow.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var st *flow.State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(sessionId))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			st = &flow.State{}
			return json.Unmarshal(val, st)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionId, err)
	}
	return st, nil
}

// Put stores the snapshot, replacing any previous one.
func (s *Store) Put(ctx context.Context, sessionId string, state *flow.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sessionId, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(stateKey(sessionId), data)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("storing session %s: %w", sessionId, err)
	}
	return nil
}

// Delete removes the snapshot and the full turn history of a session.
// Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionId string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(stateKey(sessionId)); err != nil {
			return err
		}
		it := txn.NewIterator(badger.IteratorOptions{Prefix: histPrefix(sessionId)})
		defer it.Close()
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionId, err)
	}
	return nil
}

// AppendHistory records one completed turn.
func (s *Store) AppendHistory(ctx context.Context, rec datatypes.TurnRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding turn record: %w", err)
	}
	seq := rec.Timestamp
	if seq == 0 {
		seq = time.Now().UnixMilli()
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		key := histKey(rec.SessionId, seq)
		// Bump the sequence on collision so two turns in the same
		// millisecond both survive.
		for {
			if _, getErr := txn.Get(key); errors.Is(getErr, badger.ErrKeyNotFound) {
				break
			} else if getErr != nil {
				return getErr
			}
			seq++
			key = histKey(rec.SessionId, seq)
		}
		e := badger.NewEntry(key, data)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("appending history for %s: %w", rec.SessionId, err)
	}
	return nil
}

// History returns the session's turn records in chronological order.
func (s *Store) History(ctx context.Context, sessionId string) ([]datatypes.TurnRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []datatypes.TurnRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         histPrefix(sessionId),
			PrefetchValues: true,
			PrefetchSize:   64,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec datatypes.TurnRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", sessionId, err)
	}
	return out, nil
}
