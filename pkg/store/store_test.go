package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeMemoizes(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := Key{Lineage: "H3N2", Year: 2016, Name: "consensus.fasta"}
	calls := 0
	fn := func(context.Context) ([]byte, error) {
		calls++
		return []byte(">Consensus\nMKT\n"), nil
	}

	data, hit, err := s.GetOrCompute(context.Background(), key, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, ">Consensus\nMKT\n", string(data))

	p, err := s.Path(key)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root, "H3N2", "2016", "consensus.fasta"), p)
	before, err := os.Stat(p)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	data, hit, err = s.GetOrCompute(context.Background(), key, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ">Consensus\nMKT\n", string(data))

	after, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "cache hit must not rewrite the artifact")
}

func TestGetOrComputeFailureLeavesNothing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := Key{Lineage: "B", Year: 2019, Name: "cobra.fasta"}
	_, _, err = s.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
		return nil, errors.New("cd-hit failed")
	})
	require.Error(t, err)

	_, ok, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, k := range []Key{
		{Lineage: "", Year: 2016, Name: "a"},
		{Lineage: "H1N1", Year: 2016, Name: ""},
		{Lineage: "../etc", Year: 2016, Name: "a"},
		{Lineage: "H1N1", Year: 2016, Name: ".."},
	} {
		_, err := s.Path(k)
		assert.ErrorIs(t, err, ErrInvalidKey, k.String())
	}
}

func TestUnitDir(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	dir, err := s.UnitDir("H1N1", 2010)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root, "H1N1", "2010"), dir)
}

func TestRemoveAndClearUnit(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	k := Key{Lineage: "H1N1", Year: 2010, Name: "consensus.fasta"}
	other := Key{Lineage: "H1N1", Year: 2011, Name: "consensus.fasta"}
	require.NoError(t, s.Put(k, []byte(">Consensus\nMK\n")))
	require.NoError(t, s.Put(other, []byte(">Consensus\nMK\n")))

	require.NoError(t, s.Remove(k))
	_, ok, err := s.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Remove(k), "removing a missing artifact is fine")

	require.NoError(t, s.Put(k, []byte("x")))
	require.NoError(t, s.ClearUnit("H1N1", 2010))
	dir, err := s.UnitDir("H1N1", 2010)
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, ok, err = s.Get(other)
	require.NoError(t, err)
	assert.True(t, ok, "other years are untouched")
}
