package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "ads.example.com"))
	require.NoError(t, s.Add(ctx, "*.tracker.example.com"))

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ads.example.com", "*.tracker.example.com"}, tokens)
}

func TestStore_AddDuplicate_IsIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "ads.example.com"))
	require.NoError(t, s.Add(ctx, "ads.example.com"))

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestStore_Remove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "ads.example.com"))
	require.NoError(t, s.Remove(ctx, "ads.example.com"))

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Add(context.Background(), "persisted.example.com"))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	tokens, err := s2.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted.example.com"}, tokens)
}
