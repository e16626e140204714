// Package snapshot persists the raw HTML of each stock's latest fetch so
// extraction can be replayed offline after heuristic changes.
package snapshot

import (
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// Store keeps one PageSnapshot per stock code in an embedded badger
// database.
type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open opens (or creates) the snapshot store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // arbor handles logging

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	return &Store{
		store:  store,
		logger: common.GetLogger(),
	}, nil
}

// Save upserts the snapshot for its code, replacing any previous capture.
func (s *Store) Save(snap *models.PageSnapshot) error {
	if snap.Code == "" {
		return fmt.Errorf("snapshot code is required")
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	snap.ContentSize = len(snap.HTML)

	if err := s.store.Upsert(snap.Code, snap); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snap.Code, err)
	}
	return nil
}

// Get returns the stored snapshot for code, or ErrNotFound.
func (s *Store) Get(code string) (*models.PageSnapshot, error) {
	var snap models.PageSnapshot
	if err := s.store.Get(code, &snap); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("no snapshot for %s", code)
		}
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", code, err)
	}
	return &snap, nil
}

// Count returns how many snapshots are stored.
func (s *Store) Count() (int, error) {
	count, err := s.store.Count(&models.PageSnapshot{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return int(count), nil
}

// Close runs a value-log GC pass and closes the store. Snapshots are
// full-page HTML, so reclaiming dead versions on shutdown keeps the store
// from growing with every batch run.
func (s *Store) Close() error {
	if s.store == nil {
		return nil
	}

	if err := s.store.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		s.logger.Warn().Err(err).Msg("Snapshot store value-log GC failed")
	}

	return s.store.Close()
}
