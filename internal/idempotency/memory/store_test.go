package memory

import (
	"context"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFirstWriteWins(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u-1", "key-1", ports.StoredResponse{StatusCode: 201, Body: []byte(`{"a":1}`), OrderID: "o-1"}))
	require.NoError(t, store.Save(ctx, "u-1", "key-1", ports.StoredResponse{StatusCode: 201, Body: []byte(`{"b":2}`), OrderID: "o-2"}))

	got, err := store.Get(ctx, "u-1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "o-1", got.OrderID)
	assert.Equal(t, `{"a":1}`, string(got.Body))
}

func TestStoreScopesKeysPerCaller(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u-1", "shared", ports.StoredResponse{StatusCode: 201, OrderID: "o-1"}))

	got, err := store.Get(ctx, "u-2", "shared")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	body := []byte(`{"a":1}`)

	require.NoError(t, store.Save(ctx, "u-1", "key", ports.StoredResponse{StatusCode: 201, Body: body}))
	body[0] = 'x'

	got, err := store.Get(ctx, "u-1", "key")
	require.NoError(t, err)
	got.Body[1] = 'y'

	again, err := store.Get(ctx, "u-1", "key")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again.Body))
}
