package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/draftpark/carharvest/pkg/scraper"
)

func TestNormalizeRunName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain name gets suffix", "january-run", "january-run.json", false},
		{"existing suffix kept", "weekly.json", "weekly.json", false},
		{"too short", "abcd", "", true},
		{"minimum length", "abcde", "abcde.json", false},
		{"path separator rejected", "runs/sneaky", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRunName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeRunName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeRunName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func testRecord(code string) scraper.Record {
	return scraper.Record{
		Attrs: map[string]any{"code": code, "year": float64(2020)},
		Specs: []any{map[string]any{"title": "Engine"}},
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s, err := New(t.TempDir(), "empty-run")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if records != nil {
		t.Errorf("Load() = %v, want nil for missing file", records)
	}
}

func TestStore_AppendAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "test-run")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()

	if err := s.Append(ctx, []scraper.Record{testRecord("a"), testRecord("b")}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.Append(ctx, []scraper.Record{testRecord("c")}); err != nil {
		t.Fatalf("second Append() failed: %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Load() returned %d records, want 3", len(records))
	}
	if got := records[2].Attrs["code"]; got != "c" {
		t.Errorf("records[2].Attrs[code] = %v, want c", got)
	}

	// The staging file must not survive a successful swap.
	if _, err := os.Stat(filepath.Join(dir, "_test-run.json")); !os.IsNotExist(err) {
		t.Errorf("temp file still present after Append, stat err = %v", err)
	}
}

func TestStore_AppendEmptyBatchIsNoop(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "noop-run")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := s.Append(context.Background(), nil); err != nil {
		t.Fatalf("Append(nil) failed: %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("store file created by empty append, stat err = %v", err)
	}
}

func TestStore_AppendRespectsContext(t *testing.T) {
	s, err := New(t.TempDir(), "ctx-run")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Append(ctx, []scraper.Record{testRecord("a")}); err == nil {
		t.Error("Append() with cancelled context succeeded, want error")
	}
}

func TestStore_QuarantinesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "corrupt-run")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	corrupt := []byte(`[{"attrs": {"code": "a"`)
	if err := os.WriteFile(s.Path(), corrupt, 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if records != nil {
		t.Errorf("Load() = %v, want nil after quarantine", records)
	}

	matches, err := filepath.Glob(s.Path() + ".corrupt.*")
	if err != nil || len(matches) != 1 {
		t.Fatalf("quarantine files = %v (err %v), want exactly one", matches, err)
	}
	preserved, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read quarantined file: %v", err)
	}
	if string(preserved) != string(corrupt) {
		t.Errorf("quarantined bytes differ from original corrupt content")
	}

	// The store continues as empty and can accept new appends.
	if err := s.Append(context.Background(), []scraper.Record{testRecord("fresh")}); err != nil {
		t.Fatalf("Append() after quarantine failed: %v", err)
	}
	records, err = s.Load()
	if err != nil {
		t.Fatalf("Load() after quarantine failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Load() returned %d records, want 1", len(records))
	}
}

func TestStore_FailedAppendLeavesStoreIntact(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "intact-run")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()

	if err := s.Append(ctx, []scraper.Record{testRecord("a")}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	before, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read store: %v", err)
	}

	// NaN cannot be marshalled to JSON, so the flush fails before any file
	// is touched.
	bad := scraper.Record{Attrs: map[string]any{"code": "bad", "broken": math.NaN()}}
	if err := s.Append(ctx, []scraper.Record{bad}); err == nil {
		t.Fatal("Append() with unmarshalable record succeeded, want error")
	}

	after, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read store after failed append: %v", err)
	}
	if string(before) != string(after) {
		t.Error("store contents changed by a failed append")
	}
}
