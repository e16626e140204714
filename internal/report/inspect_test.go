package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReport(t *testing.T, dailyRows, ownershipRows int) string {
	t.Helper()
	a := NewAssembler("https://poorstock.com", t.TempDir())
	path, err := a.Write(testStock, testBundle(dailyRows, ownershipRows), time.Now())
	require.NoError(t, err)
	return path
}

func TestInspector_MissingFile(t *testing.T) {
	inspection := NewInspector().Inspect(filepath.Join(t.TempDir(), "nope.md"))
	assert.False(t, inspection.Exists)
	assert.False(t, inspection.Complete())
}

func TestInspector_CompleteReport(t *testing.T) {
	inspection := NewInspector().Inspect(writeReport(t, 10, 5))

	assert.True(t, inspection.Exists)
	assert.True(t, inspection.HasPrices)
	assert.True(t, inspection.HasDaily)
	assert.True(t, inspection.HasOwnership)
	assert.False(t, inspection.LoadingMessages)
	assert.True(t, inspection.Complete())
}

func TestInspector_LoadingPlaceholdersDetected(t *testing.T) {
	inspection := NewInspector().Inspect(writeReport(t, 0, 0))

	assert.True(t, inspection.Exists)
	assert.True(t, inspection.LoadingMessages)
	assert.False(t, inspection.HasDaily)
	assert.False(t, inspection.HasOwnership)
}

func TestInspector_TwoOfThreeIsComplete(t *testing.T) {
	// Ownership missing but prices and daily present: still complete.
	inspection := NewInspector().Inspect(writeReport(t, 10, 0))

	assert.True(t, inspection.HasPrices)
	assert.True(t, inspection.HasDaily)
	assert.False(t, inspection.HasOwnership)
	assert.True(t, inspection.Complete())
}

func TestInspector_DashSlotsDoNotCountAsPrices(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	bundle := testBundle(0, 5)
	bundle.CurrentPrices = map[string]string{}

	path, err := a.Write(testStock, bundle, time.Now())
	require.NoError(t, err)

	inspection := NewInspector().Inspect(path)
	assert.False(t, inspection.HasPrices)
	assert.True(t, inspection.HasOwnership)
	assert.False(t, inspection.Complete())
}

func TestInspector_AgeFromModTime(t *testing.T) {
	path := writeReport(t, 5, 5)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	inspection := NewInspector().Inspect(path)
	assert.Greater(t, inspection.Age(time.Now()), 24*time.Hour)
}

func TestInspector_GarbageFileIsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(path, []byte("not really a report"), 0644))

	inspection := NewInspector().Inspect(path)
	assert.True(t, inspection.Exists)
	assert.False(t, inspection.Complete())
}
