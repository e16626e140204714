// Package ledger persists the per-stock processing outcome table. The CSV
// file is the sole durable state; nothing is cached across process exits.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

var header = []string{"filename", "last_update_time", "success", "process_time", "retry_count"}

// Store reads and writes the results ledger. Single writer per process;
// concurrent writers race last-writer-wins on the whole file, which is a
// documented limitation rather than something this layer guards against.
type Store struct {
	path   string
	logger arbor.ILogger
}

// NewStore creates a ledger store for the given CSV path. The file does not
// need to exist yet.
func NewStore(path string, logger arbor.ILogger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// ReadAll returns every ledger entry. A missing file, an empty file, or a
// file with an unrecognizable header is treated as an empty ledger; a fresh
// one is synthesized on the next write. Legacy files without the
// retry_count column read as zero retries.
func (s *Store) ReadAll() ([]models.LedgerEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Ledger unreadable, treating as empty")
		return nil, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := columnIndexes(rows[0])
	if cols.filename < 0 || cols.success < 0 {
		s.logger.Warn().Str("path", s.path).Msg("Ledger header missing expected columns, treating as empty")
		return nil, nil
	}

	entries := make([]models.LedgerEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if cols.filename >= len(row) || strings.TrimSpace(row[cols.filename]) == "" {
			continue
		}
		entry := models.LedgerEntry{Filename: strings.TrimSpace(row[cols.filename])}
		if cols.lastUpdate >= 0 && cols.lastUpdate < len(row) {
			entry.LastUpdateTime = strings.TrimSpace(row[cols.lastUpdate])
		}
		if cols.success < len(row) {
			entry.Success = models.ParseLedgerBool(row[cols.success])
		}
		if cols.processTime >= 0 && cols.processTime < len(row) {
			entry.ProcessTime = strings.TrimSpace(row[cols.processTime])
		}
		if cols.retryCount >= 0 && cols.retryCount < len(row) {
			if n, err := strconv.Atoi(strings.TrimSpace(row[cols.retryCount])); err == nil {
				entry.RetryCount = n
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Find returns the entry for a filename, if present.
func (s *Store) Find(filename string) (models.LedgerEntry, bool, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return models.LedgerEntry{}, false, err
	}
	for _, e := range entries {
		if e.Filename == filename {
			return e, true, nil
		}
	}
	return models.LedgerEntry{}, false, nil
}

// FailedFilenames returns the filenames of all entries recorded as failed,
// either by success flag or the FAILED sentinel.
func (s *Store) FailedFilenames() ([]string, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, e := range entries {
		if e.Failed() {
			failed = append(failed, e.Filename)
		}
	}
	return failed, nil
}

// Upsert writes an entry keyed by filename: existing rows are overwritten
// in place, new rows appended. Entries are never removed.
func (s *Store) Upsert(entry models.LedgerEntry) error {
	entries, err := s.ReadAll()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Filename == entry.Filename {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	return s.writeAll(entries)
}

// writeAll rewrites the whole ledger atomically (temp file + rename) so a
// crash mid-write never leaves a truncated ledger behind.
func (s *Store) writeAll(entries []models.LedgerEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Filename,
			e.LastUpdateTime,
			strconv.FormatBool(e.Success),
			e.ProcessTime,
			strconv.Itoa(e.RetryCount),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ledger: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

type columns struct {
	filename    int
	lastUpdate  int
	success     int
	processTime int
	retryCount  int
}

func columnIndexes(row []string) columns {
	c := columns{filename: -1, lastUpdate: -1, success: -1, processTime: -1, retryCount: -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "filename":
			c.filename = i
		case "last_update_time":
			c.lastUpdate = i
		case "success":
			c.success = i
		case "process_time":
			c.processTime = i
		case "retry_count":
			c.retryCount = i
		}
	}
	return c
}
