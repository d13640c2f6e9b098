package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlabs/grounddb/internal/ground"
	"github.com/groundlabs/grounddb/internal/store"
)

func TestOnCollectionChange_FiresOnInsert(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	var got store.CollectionChange

	s.OnCollectionChange("authors", func(c store.CollectionChange) { got = c })

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	assert.Equal(t, store.Inserted, got.Kind)
	assert.Equal(t, "a1", got.ID)
	require.NotNil(t, got.New)
	assert.Nil(t, got.Old)
}

func TestOnCollectionChange_FiresOnUpdateWithOldAndNew(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	var got store.CollectionChange

	s.OnCollectionChange("authors", func(c store.CollectionChange) { got = c })

	_, err = s.Update(ctx, "authors", "a1", map[string]any{"name": "Ada Lovelace"}, "")
	require.NoError(t, err)

	assert.Equal(t, store.Updated, got.Kind)
	require.NotNil(t, got.Old)
	require.NotNil(t, got.New)
	assert.Equal(t, "Ada", got.Old.Fields["name"])
	assert.Equal(t, "Ada Lovelace", got.New.Fields["name"])
}

func TestUnsubscribe_StopsFurtherDelivery(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	calls := 0

	id := s.OnCollectionChange("authors", func(store.CollectionChange) { calls++ })

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	require.NoError(t, s.Unsubscribe(id))

	_, err = s.Insert(ctx, "authors", map[string]any{"id": "a2", "name": "Grace"}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestReentrantMutationFromCallbackReturnsBusy(t *testing.T) {
	s := mustOpenStore(t)
	ctx := context.Background()

	var reentrantErr error

	s.OnCollectionChange("authors", func(store.CollectionChange) {
		_, reentrantErr = s.Insert(ctx, "authors", map[string]any{"id": "a2", "name": "Grace"}, "")
	})

	_, err := s.Insert(ctx, "authors", map[string]any{"id": "a1", "name": "Ada"}, "")
	require.NoError(t, err)

	require.Error(t, reentrantErr)
	assert.Equal(t, ground.KindBusy, ground.KindOf(reentrantErr))
}
