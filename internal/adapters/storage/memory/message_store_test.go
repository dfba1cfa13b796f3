package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/msgboard/internal/domain"
)

func TestMessageStore_CreateAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore()

	msgs, err := store.List(ctx, domain.DefaultListLimit)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NotNil(t, msgs)

	first, err := store.Create(ctx, "  first  ")
	require.NoError(t, err)
	second, err := store.Create(ctx, "second")
	require.NoError(t, err)

	assert.Equal(t, "first", first.Text)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Timestamp.Before(first.Timestamp))

	msgs, err = store.List(ctx, domain.DefaultListLimit)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, second.ID, msgs[0].ID)
	assert.Equal(t, first.ID, msgs[1].ID)
}

func TestMessageStore_ListLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore()
	for _, text := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, text)
		require.NoError(t, err)
	}

	msgs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "c", msgs[0].Text)
	assert.Equal(t, "b", msgs[1].Text)
}

func TestMessageStore_CreateRejectsBlank(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore()

	_, err := store.Create(ctx, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	health, err := store.Health(ctx)
	require.NoError(t, err)
	assert.Zero(t, health.MessageCount)
}

func TestMessageStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore()

	msg, err := store.Create(ctx, "bye")
	require.NoError(t, err)

	t.Run("malformed id", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, "abc"), domain.ErrValidation)
		assert.ErrorIs(t, store.Delete(ctx, "0"), domain.ErrValidation)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, "999"), domain.ErrNotFound)
	})

	t.Run("existing id", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, msg.ID))
		msgs, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		assert.ErrorIs(t, store.Delete(ctx, msg.ID), domain.ErrNotFound)
	})
}

func TestMessageStore_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	store := NewMessageStore()

	a, err := store.Create(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, a.ID))
	b, err := store.Create(ctx, "b")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestMessageStore_TimestampIsUTC(t *testing.T) {
	store := NewMessageStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	store.now = func() time.Time { return fixed }

	msg, err := store.Create(context.Background(), "tz")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())
	assert.True(t, fixed.Equal(msg.Timestamp))
}
