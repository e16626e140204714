package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUniverse(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "StockID_TWSE_TPEX.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadWithHeader(t *testing.T) {
	path := writeUniverse(t, "代號,名稱\n2330,台積電\n2317,鴻海\n")

	u, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, u.Len())
	stock, ok := u.Find("2330")
	require.True(t, ok)
	assert.Equal(t, "台積電", stock.Name)
	assert.Equal(t, "poorstock_2330_台積電.md", stock.ReportFilename())
}

func TestLoadWithoutHeader(t *testing.T) {
	path := writeUniverse(t, "2330,台積電\n2317,鴻海\n")

	u, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Len())
}

func TestLoadSkipsBlankAndDuplicateRows(t *testing.T) {
	path := writeUniverse(t, "代號,名稱\n2330,台積電\n,\n2330,重複\n2317,鴻海\n")

	u, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, u.Len())
	stock, _ := u.Find("2330")
	assert.Equal(t, "台積電", stock.Name, "first occurrence wins")
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLoadPreservesFileOrder(t *testing.T) {
	path := writeUniverse(t, "代號,名稱\n2317,鴻海\n2330,台積電\n1101,台泥\n")

	u, err := Load(path)
	require.NoError(t, err)

	codes := make([]string, 0, u.Len())
	for _, s := range u.Stocks() {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"2317", "2330", "1101"}, codes)
}
