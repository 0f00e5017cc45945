package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Key identifies one cached statement payload. Entries are keyed by the
// calendar year they were fetched in (the vintage year), not by the
// requested window size: the payload is stored pre-truncation, so one entry
// serves any window.
type Key struct {
	Symbol   string
	Function string
	Period   string
	Year     int
}

// Filename returns the deterministic file name for this key.
func (k Key) Filename() string {
	return fmt.Sprintf("%s_%s_%s_%d.json", k.Symbol, k.Function, k.Period, k.Year)
}

// Store is a disk-backed JSON cache of raw provider payloads. All methods
// are best-effort: I/O failures degrade to cache misses or dropped writes,
// never to run failures.
type Store struct {
	dir    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates the cache directory if needed and returns a Store with
// the given freshness TTL.
func NewStore(dir string, ttl time.Duration, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, ttl: ttl, logger: logger}, nil
}

// Dir returns the cache directory path.
func (s *Store) Dir() string { return s.dir }

// Get returns the cached payload for key if the file exists, its
// modification age is within the freshness TTL, and its content is valid
// JSON. Anything else is a miss. Stale files are left in place; Prune
// handles deletion.
func (s *Store) Get(key Key) (json.RawMessage, bool) {
	path := filepath.Join(s.dir, key.Filename())

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) >= s.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", key.Filename()).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !json.Valid(data) {
		s.logger.Warn().Str("file", key.Filename()).Msg("corrupted cache entry, treating as miss")
		return nil, false
	}
	return data, true
}

// Put writes the payload for key, overwriting any existing entry. A write
// failure is logged and swallowed; a missed cache write is an acceptable
// degraded state.
func (s *Store) Put(key Key, payload json.RawMessage) {
	path := filepath.Join(s.dir, key.Filename())
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		s.logger.Warn().Err(err).Str("file", key.Filename()).Msg("cache write failed")
	}
}

// Prune deletes cache files whose modification age exceeds maxAge and
// returns the number removed. It is a housekeeping pass, independent of the
// freshness TTL.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("cache prune: remove failed")
			continue
		}
		removed++
	}
	return removed, nil
}
