// Package datastore is a typed key/value map kept in memory and persisted
// to a single JSON file. Writes are atomic and the previous file is kept
// in rotating backups.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("datastore: closed")

// Config holds configuration options for a Store.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration // 0 disables autosave
	BackupCount      int           // backups to keep, 0 disables
	Logger           *zap.Logger
}

// DefaultConfig saves every ten seconds and keeps three backups.
func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
	}
}

// Store holds values of type T by string key. It is safe for concurrent use.
type Store[T any] struct {
	mu     sync.RWMutex
	data   map[string]T
	cfg    Config
	log    *zap.Logger
	closed bool

	saveMu       sync.Mutex // serializes writers of the file
	lastChecksum string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open loads cfg.FilePath, creating it when missing, and starts autosave.
func Open[T any](cfg Config) (*Store[T], error) {
	if cfg.FilePath == "" {
		return nil, errors.New("datastore: file path cannot be empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}

	s := &Store[T]{
		data: make(map[string]T),
		cfg:  cfg,
		log:  cfg.Logger.Named("datastore"),
	}

	switch _, err := os.Stat(cfg.FilePath); {
	case errors.Is(err, os.ErrNotExist):
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("datastore: create empty file: %w", err)
		}
		s.lastChecksum = checksumOf([]byte("{}"))
	case err == nil:
		if err := s.load(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("datastore: stat file: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if cfg.AutoSaveInterval > 0 {
		s.wg.Add(1)
		go s.autoSave(ctx)
	}
	return s, nil
}

// Get returns the value stored under key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Put stores v under key.
func (s *Store[T]) Put(key string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.data[key] = v
	return nil
}

// Update replaces the value under key with the result of fn, atomically
// with respect to other writers. fn receives the current value and
// whether it exists; returning false deletes the key.
func (s *Store[T]) Update(key string, fn func(v T, ok bool) (T, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur, ok := s.data[key]
	next, keep := fn(cur, ok)
	if keep {
		s.data[key] = next
	} else {
		delete(s.data, key)
	}
	return nil
}

// Delete removes key.
func (s *Store[T]) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.data, key)
	return nil
}

// Range calls fn for every entry in key order until fn returns false.
// fn must not modify the store.
func (s *Store[T]) Range(fn func(key string, v T) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, s.data[k]) {
			return
		}
	}
}

// Len returns the number of keys.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Save forces an immediate write to disk.
func (s *Store[T]) Save() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return s.save()
}

// Close stops autosave and writes the final state.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.save()
}

// save writes the map when its checksum changed since the last write.
func (s *Store[T]) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("datastore: marshal: %w", err)
	}

	checksum := checksumOf(data)
	if checksum == s.lastChecksum {
		return nil
	}

	if s.cfg.BackupCount > 0 {
		if err := s.createBackup(); err != nil {
			s.log.Warn("failed to create backup", zap.Error(err))
		}
	}
	if err := s.writeFileAtomic(data); err != nil {
		return err
	}
	if err := s.verifyFile(checksum); err != nil {
		return err
	}
	s.lastChecksum = checksum
	return nil
}

func (s *Store[T]) load() error {
	raw, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("datastore: read file: %w", err)
	}
	data := make(map[string]T)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("datastore: invalid JSON in %s: %w", s.cfg.FilePath, err)
	}
	s.data = data
	s.lastChecksum = checksumOf(raw)
	return nil
}

// writeFileAtomic writes to a temporary file, syncs it and renames it over
// the target.
func (s *Store[T]) writeFileAtomic(data []byte) error {
	tmp := s.cfg.FilePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("datastore: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: rename temp file: %w", err)
	}
	return nil
}

func (s *Store[T]) verifyFile(checksum string) error {
	actual, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("datastore: read back: %w", err)
	}
	if checksumOf(actual) != checksum {
		return errors.New("datastore: file checksum mismatch")
	}
	return nil
}

func (s *Store[T]) createBackup() error {
	src, err := os.Open(s.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup.%s", s.cfg.FilePath, time.Now().Format("20060102_150405.000000000"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	s.cleanupOldBackups()
	return nil
}

// cleanupOldBackups removes the oldest backups beyond BackupCount.
func (s *Store[T]) cleanupOldBackups() {
	matches, err := filepath.Glob(s.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= s.cfg.BackupCount {
		return
	}
	// The timestamp suffix sorts chronologically.
	sort.Strings(matches)
	for _, m := range matches[:len(matches)-s.cfg.BackupCount] {
		if err := os.Remove(m); err != nil {
			s.log.Warn("failed to remove old backup", zap.String("path", m), zap.Error(err))
		}
	}
}

func (s *Store[T]) autoSave(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.AutoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.save(); err != nil {
				s.log.Error("auto-save failed", zap.Error(err))
			}
		}
	}
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
