// Package store implements the on-disk run store: a single JSON document
// holding the full history of flushed records, rewritten wholesale on every
// flush with a write-then-rename swap so readers never observe a partial
// file.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/logging"
	"github.com/draftpark/carharvest/pkg/scraper"
)

// MinRunNameLen is the shortest accepted run name.
const MinRunNameLen = 5

// NormalizeRunName validates a caller-chosen run name and appends the .json
// suffix if missing.
func NormalizeRunName(name string) (string, error) {
	if len(name) < MinRunNameLen {
		return "", fmt.Errorf("run name too short (need at least %d characters)", MinRunNameLen)
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("run name must not contain path separators")
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return name, nil
}

// Store persists the records of one run.
type Store struct {
	dir    string
	name   string
	logger zerolog.Logger
}

// New creates a store for the given run, creating the output directory if
// needed.
func New(dir, runName string) (*Store, error) {
	name, err := NormalizeRunName(runName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &Store{
		dir:    dir,
		name:   name,
		logger: logging.NewLogger("store").With().Str("run", name).Logger(),
	}, nil
}

// Path returns the final store file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.name)
}

// tempPath is the staging file written before the rename swap.
func (s *Store) tempPath() string {
	return filepath.Join(s.dir, "_"+s.name)
}

// Load reads the current store contents. A missing file is an empty store.
// An unreadable or unparseable file is quarantined to <name>.corrupt.<unix>
// and treated as empty; prior history stays on disk for manual recovery.
func (s *Store) Load() ([]scraper.Record, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	var records []scraper.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.quarantine(err)
		return nil, nil
	}
	return records, nil
}

// Append merges the batch into the persisted store: load current contents,
// append, write to a temporary file, and rename it over the final path. The
// rename replaces atomically, so concurrent readers observe either the
// pre-flush or the post-flush store, never a half-written one.
func (s *Store) Append(ctx context.Context, batch []scraper.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	existing, err := s.Load()
	if err != nil {
		return err
	}
	merged := append(existing, batch...)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmp := s.tempPath()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swap store: %w", err)
	}

	s.logger.Debug().
		Int("appended", len(batch)).
		Int("total", len(merged)).
		Msg("Store rewritten")
	return nil
}

// quarantine moves an unreadable store file aside instead of discarding it.
func (s *Store) quarantine(cause error) {
	dst := fmt.Sprintf("%s.corrupt.%d", s.Path(), time.Now().Unix())
	if err := os.Rename(s.Path(), dst); err != nil {
		s.logger.Error().Err(err).Msg("Failed to quarantine corrupt store")
		return
	}
	s.logger.Error().
		Err(cause).
		Str("quarantined_to", dst).
		Msg("Store file unparseable, starting empty")
}
