package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

//go:embed seed/releases.csv
var seedCSV []byte

// DefaultLockTimeout bounds how long a writer waits for another process.
const DefaultLockTimeout = 30 * time.Second

// Options configures Open.
type Options struct {
	// NoSeed starts an absent catalog empty instead of from the embedded seed.
	NoSeed      bool
	LockTimeout time.Duration
	Logger      logging.Logger
}

// Store is the in-memory view of a catalog file. Reads take a shared lock
// and return snapshots; writes are serialized in-process by a mutex and
// across processes by a lock file next to the catalog.
type Store struct {
	path        string
	lockTimeout time.Duration
	logger      logging.Logger

	mu      sync.RWMutex
	entries []Entry
	index   map[Entry]struct{}
}

// Open loads the catalog at path. An empty path keeps the catalog in memory
// only. A missing file starts from the embedded seed unless opts.NoSeed is
// set; the seed is written out on the first change.
func Open(path string, opts Options) (*Store, error) {
	s := &Store{
		path:        path,
		lockTimeout: opts.LockTimeout,
		logger:      logging.OrNop(opts.Logger),
		index:       make(map[Entry]struct{}),
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, os.ErrNotExist):
			if !opts.NoSeed {
				data = seedCSV
			}
		default:
			return nil, fmt.Errorf("read catalog: %w", err)
		}
	} else if !opts.NoSeed {
		data = seedCSV
	}

	entries, err := s.parse(data)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		s.insert(e)
	}
	return s, nil
}

// Path returns the backing file path, or "" for in-memory catalogs.
func (s *Store) Path() string { return s.path }

// Len returns the number of distinct entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a snapshot of every entry in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Has reports whether e is in the catalog.
func (s *Store) Has(e Entry) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[e]
	return ok
}

// Versions returns the concrete versions recorded for a platform.
func (s *Store) Versions(info platform.Info) []version.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []version.Spec
	for _, e := range s.entries {
		if e.System != info.System || e.Arch != info.Arch {
			continue
		}
		v, err := version.Parse(e.Version)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Platforms returns every platform with at least one entry.
func (s *Store) Platforms() []platform.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[platform.Info]bool)
	var out []platform.Info
	for _, e := range s.entries {
		p := e.Platform()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Add appends entries not already present and returns how many were new.
// New rows are appended to the backing file under the cross-process lock.
func (s *Store) Add(ctx context.Context, entries ...Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []Entry
	for _, e := range entries {
		if _, ok := s.index[e]; ok {
			continue
		}
		if e.Version == "" || !e.Platform().Valid() {
			return 0, fmt.Errorf("invalid catalog entry %q", e.String())
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if s.path != "" {
		if err := s.withFileLock(ctx, func() error { return s.appendRows(fresh) }); err != nil {
			return 0, err
		}
	}
	for _, e := range fresh {
		s.insert(e)
	}
	s.logger.Debug("catalog entries added", "count", len(fresh), "path", s.path)
	return len(fresh), nil
}

// Compact merges the file with the in-memory view, sorts, deduplicates and
// atomically rewrites the file.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	compact := func() error {
		if s.path != "" {
			data, err := os.ReadFile(s.path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("read catalog: %w", err)
			}
			onDisk, err := s.parse(data)
			if err != nil {
				return err
			}
			for _, e := range onDisk {
				s.insert(e)
			}
		}

		Sort(s.entries)

		if s.path == "" {
			return nil
		}
		return s.writeAll(s.entries)
	}

	if s.path == "" {
		return compact()
	}
	return s.withFileLock(ctx, compact)
}

func (s *Store) insert(e Entry) {
	if _, ok := s.index[e]; ok {
		return
	}
	s.index[e] = struct{}{}
	s.entries = append(s.entries, e)
}

func (s *Store) withFileLock(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	lock, err := acquireLock(ctx, s.path+".lock")
	if err != nil {
		return fmt.Errorf("lock catalog: %w", err)
	}
	defer lock.release()
	return fn()
}

// appendRows appends rows to the catalog file. A missing file is first
// materialized from the in-memory view so seeded entries are not lost.
func (s *Store) appendRows(rows []Entry) error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		all := append(append([]Entry(nil), s.entries...), rows...)
		return s.writeAll(all)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	if err := ensureTrailingNewline(f, s.path); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	for _, e := range rows {
		if err := w.Write(record(e)); err != nil {
			return fmt.Errorf("append catalog row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append catalog row: %w", err)
	}
	return f.Sync()
}

// writeAll atomically replaces the catalog file with rows.
func (s *Store) writeAll(rows []Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".relfetch-catalog-*")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // Clean up on error

	w := csv.NewWriter(tmpFile)
	for _, e := range rows {
		if err := w.Write(record(e)); err != nil {
			tmpFile.Close()
			return fmt.Errorf("write catalog: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync catalog: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// parse reads CSV rows. Rows that do not normalize are logged and skipped
// so one bad line does not hide the rest of the catalog.
func (s *Store) parse(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	var out []Entry
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("parse catalog line %d: %w", line, err)
		}
		if len(rec) != 3 {
			s.logger.Warn("skipping malformed catalog row", "line", line, "fields", len(rec))
			continue
		}
		if strings.EqualFold(rec[0], "version") {
			continue
		}
		e, err := ParseEntry(rec[0], rec[1], rec[2])
		if err != nil {
			s.logger.Warn("skipping invalid catalog row", "line", line, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func record(e Entry) []string {
	return []string{e.Version, string(e.System), string(e.Arch)}
}

func ensureTrailingNewline(f *os.File, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat catalog: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	rf, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer rf.Close()

	last := make([]byte, 1)
	if _, err := rf.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return fmt.Errorf("append catalog row: %w", err)
		}
	}
	return nil
}
