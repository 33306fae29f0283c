package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockInput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"H3N2.fasta", "H1N1.fasta.gz", "B.fa", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(">x\nACGT\n"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "work"), 0755))
	return dir
}

func TestNewSequenceDB(t *testing.T) {
	_, err := NewSequenceDB(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	sdb, err := NewSequenceDB(mockInput(t))
	require.NoError(t, err)
	assert.NotEmpty(t, sdb.Dir)
}

func TestLineageFasta(t *testing.T) {
	sdb := &SequenceDB{Dir: mockInput(t)}

	p, err := sdb.LineageFasta("H1N1")
	require.NoError(t, err)
	assert.Equal(t, "H1N1.fasta.gz", filepath.Base(p))

	_, err = sdb.LineageFasta("H5N1")
	assert.ErrorIs(t, err, ErrNoLineageInput)
}

func TestLineages(t *testing.T) {
	sdb := &SequenceDB{Dir: mockInput(t)}

	got, err := sdb.Lineages()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "H1N1", "H3N2"}, got)
}
