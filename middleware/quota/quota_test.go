package quota

import (
	"context"
	"testing"

	"github.com/dk26/anyfs"
	"github.com/dk26/anyfs/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaScansExistingUsageAtLayerTime(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	require.NoError(t, inner.Write(ctx, "/f", []byte("12345")))

	b, err := NewBuilder[*memory.MemoryBackend]().MaxTotalSize(1024).Layer(inner)
	require.NoError(t, err)

	assert.EqualValues(t, 5, b.Usage().TotalSize)
	assert.EqualValues(t, 1, b.Usage().FileCount)
}

func TestQuotaRejectsWriteExceedingTotalSize(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxTotalSize(4).Layer(memory.New())
	require.NoError(t, err)

	err = b.Write(ctx, "/f", []byte("12345"))
	require.Error(t, err)
	assert.Equal(t, anyfs.KindQuotaExceeded, anyfs.KindOf(err))
}

func TestQuotaRejectsFileExceedingMaxFileSize(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxFileSize(2).Layer(memory.New())
	require.NoError(t, err)

	err = b.Write(ctx, "/f", []byte("abc"))
	require.Error(t, err)
	assert.Equal(t, anyfs.KindFileSizeExceeded, anyfs.KindOf(err))
}

func TestQuotaAllowsWriteWithinLimitsAndUpdatesUsage(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxTotalSize(100).Layer(memory.New())
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, "/f", []byte("abc")))
	assert.EqualValues(t, 3, b.Usage().TotalSize)
	assert.EqualValues(t, 1, b.Usage().FileCount)
}

func TestQuotaReleasesUsageOnRemove(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxTotalSize(100).Layer(memory.New())
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, "/f", []byte("abc")))
	require.NoError(t, b.RemoveFile(ctx, "/f"))

	assert.EqualValues(t, 0, b.Usage().TotalSize)
	assert.EqualValues(t, 0, b.Usage().FileCount)
}

func TestQuotaOpenWriteStreamUpdatesUsageOnClose(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxTotalSize(100).Layer(memory.New())
	require.NoError(t, err)

	w, err := b.OpenWrite(ctx, "/f")
	require.NoError(t, err)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, w.Close())

	assert.EqualValues(t, 5, b.Usage().TotalSize)
	assert.EqualValues(t, 1, b.Usage().FileCount)

	rescanned, err := scan[*memory.MemoryBackend](ctx, b.backend)
	require.NoError(t, err)
	assert.Equal(t, rescanned, b.Usage())
}

func TestQuotaOpenWriteStreamRejectsExceedingTotalSizeMidStream(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxTotalSize(4).Layer(memory.New())
	require.NoError(t, err)

	w, err := b.OpenWrite(ctx, "/f")
	require.NoError(t, err)
	_, err = w.Write([]byte("12345"))
	require.Error(t, err)
	assert.Equal(t, anyfs.KindQuotaExceeded, anyfs.KindOf(err))
	assert.LessOrEqual(t, b.Usage().TotalSize, uint64(4))
}

func TestQuotaRejectsNameExceedingMaxNameLength(t *testing.T) {
	ctx := context.Background()
	b, err := NewBuilder[*memory.MemoryBackend]().MaxNameLength(3).Layer(memory.New())
	require.NoError(t, err)

	err = b.Write(ctx, "/toolongname", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, anyfs.KindNameLengthExceeded, anyfs.KindOf(err))
}
