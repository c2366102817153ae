package pathfilter

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFilterAllowsMatchingPath(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/public/f", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().Allow("/public/*").Layer(inner)
	require.NoError(t, err)

	data, err := b.Read(ctx, "/public/f")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestPathFilterDeniesByDefault(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/secret/f", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().Allow("/public/*").Layer(inner)
	require.NoError(t, err)

	_, err = b.Read(ctx, "/secret/f")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindAccessDenied, anyfs.KindOf(err))
}

func TestPathFilterFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/a/secret", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().
		Deny("/a/secret").
		Allow("/a/*").
		Layer(inner)
	require.NoError(t, err)

	_, err = b.Read(ctx, "/a/secret")
	require.Error(t, err)
	assert.Equal(t, anyfs.KindAccessDenied, anyfs.KindOf(err))
}

func TestPathFilterReadDirHidesDeniedEntries(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/dir/visible", []byte("v")))
	require.NoError(t, inner.Write(ctx, "/dir/hidden", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().
		Allow("/dir/visible").
		Allow("/dir").
		Layer(inner)
	require.NoError(t, err)

	entries, err := b.ReadDir(ctx, "/dir")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["visible"])
	assert.False(t, names["hidden"])
}

func TestPathFilterExistsReportsFalseWhenDenied(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/secret", []byte("v")))

	b, err := NewBuilder[*memory.MemoryBackend]().Allow("/public").Layer(inner)
	require.NoError(t, err)

	exists, err := b.Exists(ctx, "/secret")
	require.NoError(t, err)
	assert.False(t, exists)
}
