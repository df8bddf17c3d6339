package psdbench_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hamzali/psdbench"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCsv(t *testing.T) {
	const testCsvContent = `file,decoder,apply_opacity
a.psd,lazy,true
a.psd,oov,
bad line
b.psd,lazy,false`

	errCh := make(chan error, 10)

	jobs, parseFailure, err := psdbench.ProcessCsv(strings.NewReader(testCsvContent), "run-1", errCh)
	require.NoError(t, err)

	assert.Equal(t, 1, parseFailure)
	assert.Len(t, errCh, 1)
	assert.Equal(t, []psdbench.Job{
		{RunID: "run-1", File: "a.psd", Decoder: "lazy", Options: psdbench.Options{ApplyOpacity: true}},
		{RunID: "run-1", File: "a.psd", Decoder: "oov"},
		{RunID: "run-1", File: "b.psd", Decoder: "lazy"},
	}, jobs)
	assert.Equal(t, []string{"a.psd", "b.psd"}, psdbench.Files(jobs))
}

func TestCrossJobs(t *testing.T) {
	jobs := psdbench.CrossJobs("r", []string{"a", "b"}, []string{"x", "y"}, psdbench.Options{ApplyOpacity: true})

	require.Len(t, jobs, 4)
	assert.Equal(t, psdbench.Job{RunID: "r", File: "a", Decoder: "y", Options: psdbench.Options{ApplyOpacity: true}}, jobs[1])
	assert.Equal(t, "b", jobs[2].File)
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 0, 5)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		p := filepath.Join(dir, name+".psd")
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		paths = append(paths, p)
	}

	docs, err := psdbench.LoadDocuments(context.Background(), paths, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 5)
	assert.Equal(t, []byte("c"), docs[paths[2]])

	_, err = psdbench.LoadDocuments(context.Background(), append(paths, filepath.Join(dir, "missing.psd")), 2)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
