package firestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/msgboard/internal/adapters/storage/conncache"
	"github.com/PabloGalante/msgboard/internal/domain"
)

func newTestStore(projectID string, dialErr error, calls *int) *Store {
	return NewStore(
		Config{ProjectID: projectID, Collection: "messages"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDialer(func(context.Context, *conncache.Handle[*firestore.Client]) (*firestore.Client, error) {
			*calls++
			return nil, dialErr
		}),
	)
}

func TestStore_Unconfigured(t *testing.T) {
	ctx := context.Background()
	calls := 0
	store := newTestStore("", nil, &calls)

	_, err := store.List(ctx, 10)
	require.ErrorIs(t, err, domain.ErrConfigurationMissing)

	_, err = store.Create(ctx, "hi")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	require.ErrorIs(t, store.Delete(ctx, "abc"), domain.ErrStoreUnavailable)
	assert.Zero(t, calls)
}

func TestStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	calls := 0
	store := newTestStore("demo", status.Error(codes.Unauthenticated, "invalid credentials"), &calls)

	msgs, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = store.Create(ctx, "hi")
	var cerr *domain.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, domain.CategoryAuth, cerr.Category)

	health, err := store.Health(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, health.Connected)
	assert.Equal(t, backendName, health.Backend)
}

func TestStore_DeleteValidatesID(t *testing.T) {
	calls := 0
	store := newTestStore("demo", errors.New("down"), &calls)

	for _, id := range []domain.MessageID{"", ".", "..", "a/b", "__reserved__", domain.MessageID(strings.Repeat("x", maxDocIDBytes+1))} {
		assert.ErrorIs(t, store.Delete(context.Background(), id), domain.ErrValidation, "id %q", id)
	}
	assert.Zero(t, calls)

	assert.ErrorIs(t, store.Delete(context.Background(), "Xy12AbCdEf"), domain.ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.CategoryAuth, classify(status.Error(codes.PermissionDenied, "nope")))
	assert.Equal(t, domain.CategoryAuth, classify(errors.New("google: could not find default credentials")))
	assert.Equal(t, domain.CategoryDNS, classify(errors.New("dial tcp: lookup firestore.googleapis.com: no such host")))
	assert.Equal(t, domain.CategoryOther, classify(status.Error(codes.Internal, "boom")))
}

func TestUnavailable(t *testing.T) {
	assert.True(t, unavailable(status.Error(codes.Unavailable, "down")))
	assert.True(t, unavailable(context.DeadlineExceeded))
	assert.False(t, unavailable(status.Error(codes.InvalidArgument, "bad")))
}
