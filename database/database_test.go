package database_test

import (
	"path/filepath"
	"testing"

	"github.com/hamzali/psdbench"
	"github.com/hamzali/psdbench/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	db, err := database.New("sqlite", filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer db.Close()

	first := psdbench.Measurement{
		Job:    psdbench.Job{RunID: "run-1", File: "a.psd", Decoder: "lazy"},
		Result: psdbench.BenchmarkResult{ParseTime: 1.5, ImageRenderTime: 2.25, LayerRenderTime: 3},
	}
	second := psdbench.Measurement{
		Job:    psdbench.Job{RunID: "run-1", File: "a.psd", Decoder: "oov", Options: psdbench.Options{ApplyOpacity: true}},
		Result: psdbench.BenchmarkResult{ParseTime: 4, ImageRenderTime: -0.5, LayerRenderTime: 6},
	}

	require.NoError(t, db.Record(first))
	require.NoError(t, db.Record(second))

	rows, err := db.Results(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "oov", rows[0].Decoder)
	assert.True(t, rows[0].ApplyOpacity)
	assert.Equal(t, second.Result, rows[0].Result)
	assert.False(t, rows[0].CreatedAt.IsZero())

	assert.Equal(t, "run-1", rows[1].RunID)
	assert.Equal(t, first.Result, rows[1].Result)

	rows, err = db.Results(1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	db, err := database.New("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, db.Record(psdbench.Measurement{Job: psdbench.Job{RunID: "r", File: "f", Decoder: "d"}}))
	db.Close()

	db, err = database.New("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Results(5)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNewErrors(t *testing.T) {
	_, err := database.New("oracle", "")
	assert.ErrorIs(t, err, database.ErrUnsupportedDriver)

	var db database.Database
	assert.ErrorIs(t, db.Record(psdbench.Measurement{}), database.ErrDBNotInitialized)

	_, err = db.Results(1)
	assert.ErrorIs(t, err, database.ErrDBNotInitialized)
}
