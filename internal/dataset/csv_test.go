package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCSV(t *testing.T) {
	t.Run("BasicDataset", func(t *testing.T) {
		path := writeDataset(t, `id,statement,expected
latency-p99,p99 latency stays under 100ms,supported
uptime-sla,uptime never drops,refuted
`)

		rows, err := LoadCSV(path)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, "latency-p99", rows[0]["id"])
		assert.Equal(t, "p99 latency stays under 100ms", rows[0]["statement"])
		assert.Equal(t, "refuted", rows[1]["expected"])
	})

	t.Run("HeadersAreNormalized", func(t *testing.T) {
		path := writeDataset(t, `ID, Statement
c1,something verifiable
`)

		rows, err := LoadCSV(path)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		assert.Equal(t, "c1", rows[0]["id"])
		assert.Equal(t, "something verifiable", rows[0]["statement"])
	})

	t.Run("QuotedFieldsWithCommas", func(t *testing.T) {
		path := writeDataset(t, `id,statement
c1,"the API returns 200, even under load"
`)

		rows, err := LoadCSV(path)
		require.NoError(t, err)
		assert.Equal(t, "the API returns 200, even under load", rows[0]["statement"])
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		path := writeDataset(t, "id,statement\n")

		rows, err := LoadCSV(path)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := writeDataset(t, "")

		_, err := LoadCSV(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no header row")
	})

	t.Run("ShortRowRejected", func(t *testing.T) {
		path := writeDataset(t, `id,statement,expected
c1,only two fields
`)

		_, err := LoadCSV(path)
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
	})
}

func TestLoadCSVRange(t *testing.T) {
	path := writeDataset(t, `id,statement
c1,first
c2,second
c3,third
c4,fourth
`)

	t.Run("MiddleSlice", func(t *testing.T) {
		rows, err := LoadCSVRange(path, 2, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "c2", rows[0]["id"])
		assert.Equal(t, "c3", rows[1]["id"])
	})

	t.Run("EndClampedToDataset", func(t *testing.T) {
		rows, err := LoadCSVRange(path, 3, 100)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "c4", rows[1]["id"])
	})

	t.Run("StartBeyondDataset", func(t *testing.T) {
		rows, err := LoadCSVRange(path, 10, 20)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("InvalidStart", func(t *testing.T) {
		_, err := LoadCSVRange(path, 0, 2)
		require.Error(t, err)
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		_, err := LoadCSVRange(path, 3, 2)
		require.Error(t, err)
	})
}
