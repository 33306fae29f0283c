package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "consensus.fasta")

	require.NoError(t, WriteFileAtomic(target, []byte(">a\nMK\n"), 0o644))
	assert.True(t, FileExists(target))
	assert.True(t, DirExists(filepath.Dir(target)))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, ">a\nMK\n", string(got))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestExistsOnMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	assert.False(t, FileExists(missing))
	assert.False(t, DirExists(missing))
}

func TestDirExistsOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.fasta")
	require.NoError(t, os.WriteFile(file, []byte(">a\nMK\n"), 0o644))
	assert.False(t, DirExists(file))
	assert.True(t, DirExists(filepath.Dir(file)))
	assert.False(t, DirExists(filepath.Join(file, "child")), "stat errors other than not-exist are false too")
}
