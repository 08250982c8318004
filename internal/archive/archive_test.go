package archive_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/archive"
	"invoicer/internal/domain"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[n]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestExtractPDFs_FiltersAndFlattens(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "batch.zip")
	writeZip(t, zipPath, map[string]string{
		"a.pdf":               "A",
		"nested/deeper/b.PDF": "B",
		"__MACOSX/._a.pdf":    "meta",
		".hidden.pdf":         "hidden",
		"nested/.DS_Store":    "ds",
		"notes.txt":           "txt",
		"other/a.pdf":         "A2",
		"nested/":             "",
	})

	out := filepath.Join(dir, "out")
	paths, err := archive.ExtractPDFs(zipPath, out)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		assert.Equal(t, out, filepath.Dir(p))
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a-1.pdf", "a.pdf", "b.PDF"}, names)

	got, err := os.ReadFile(filepath.Join(out, "b.PDF"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(got))
}

func TestExtractPDFs_NotAZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(p, []byte("nope"), 0o600))
	_, err := archive.ExtractPDFs(p, t.TempDir())
	assert.Error(t, err)
}

func TestWriteResults_OnlySuccessfulOutputs(t *testing.T) {
	dir := t.TempDir()
	ok1 := filepath.Join(dir, "2024-03-15-A.pdf")
	ok2 := filepath.Join(dir, "2024-03-16-B.pdf")
	require.NoError(t, os.WriteFile(ok1, []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(ok2, []byte("2"), 0o600))

	results := []domain.ProcessingResult{
		{Success: true, NewPath: ok1},
		{Success: false, OriginalPath: filepath.Join(dir, "x.pdf"), Error: "boom"},
		{Success: true, NewPath: ok2},
		{Success: true, NewPath: filepath.Join(dir, "dry-run-only.pdf")},
	}
	dst := filepath.Join(dir, "results", "session.zip")
	n, err := archive.WriteResults(dst, results)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"2024-03-15-A.pdf", "2024-03-16-B.pdf"}, zipNames(t, dst))
}

func TestWriteResults_EmptyArchive(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "empty.zip")
	n, err := archive.WriteResults(dst, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, zipNames(t, dst))
}

func TestWriter_RejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "same.pdf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	w, err := archive.Create(filepath.Join(dir, "out.zip"))
	require.NoError(t, err)
	require.NoError(t, w.AddFile(src))
	assert.Error(t, w.AddFile(src))
	require.NoError(t, w.Close())
}
