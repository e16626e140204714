package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "download_results.csv"), common.GetLogger())
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertAppendsThenOverwrites(t *testing.T) {
	s := newTestStore(t)

	first := models.LedgerEntry{
		Filename:       "poorstock_2330_台積電.md",
		LastUpdateTime: "2025-08-01 10:00:00",
		Success:        true,
		ProcessTime:    "2025-08-01 10:00:05",
		RetryCount:     1,
	}
	require.NoError(t, s.Upsert(first))

	second := first
	second.Success = false
	second.LastUpdateTime = models.FailedSentinel
	second.RetryCount = 3
	require.NoError(t, s.Upsert(second))

	entries, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1, "upsert must never duplicate a filename")
	assert.False(t, entries[0].Success)
	assert.Equal(t, models.FailedSentinel, entries[0].LastUpdateTime)
	assert.Equal(t, 3, entries[0].RetryCount)
}

func TestUpsertKeepsOtherRows(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(models.LedgerEntry{Filename: "a.md", Success: true}))
	require.NoError(t, s.Upsert(models.LedgerEntry{Filename: "b.md", Success: false}))
	require.NoError(t, s.Upsert(models.LedgerEntry{Filename: "a.md", Success: false}))

	entries, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadAllNormalizesLegacySuccessValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download_results.csv")
	legacy := "filename,last_update_time,success,process_time\n" +
		"a.md,2025-08-01 10:00:00,True,2025-08-01 10:00:05\n" +
		"b.md,FAILED,False,2025-08-01 10:01:00\n" +
		"c.md,2025-08-01 10:02:00,1,2025-08-01 10:02:05\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := NewStore(path, common.GetLogger())
	entries, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Success)
	assert.False(t, entries[1].Success)
	assert.True(t, entries[1].Failed())
	assert.True(t, entries[2].Success)
	assert.Equal(t, 0, entries[0].RetryCount, "legacy ledger has no retry_count column")
}

func TestReadAllToleratesHeaderOnlyAndGarbage(t *testing.T) {
	dir := t.TempDir()

	headerOnly := filepath.Join(dir, "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("filename,last_update_time,success,process_time,retry_count\n"), 0644))
	entries, err := NewStore(headerOnly, common.GetLogger()).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)

	garbage := filepath.Join(dir, "garbage.csv")
	require.NoError(t, os.WriteFile(garbage, []byte("not,a,ledger\nx,y,z\n"), 0644))
	entries, err = NewStore(garbage, common.GetLogger()).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries, "unrecognizable header reads as empty ledger")
}

func TestFailedFilenames(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(models.LedgerEntry{Filename: "ok.md", Success: true, LastUpdateTime: "2025-08-01 10:00:00"}))
	require.NoError(t, s.Upsert(models.LedgerEntry{Filename: "bad.md", Success: false, LastUpdateTime: models.FailedSentinel}))
	require.NoError(t, s.Upsert(models.LedgerEntry{Filename: "sentinel.md", Success: true, LastUpdateTime: models.FailedSentinel}))

	failed, err := s.FailedFilenames()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bad.md", "sentinel.md"}, failed)
}
