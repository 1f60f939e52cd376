package repository

import (
	"context"
	"testing"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (*MongoSlot, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	slot := NewMongoSlot(db)
	require.NoError(t, slot.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return slot, cleanup
}

func TestMongoSlot_LoadEmpty(t *testing.T) {
	slot, cleanup := setupTestDB(t)
	defer cleanup()

	data, err := slot.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, cache.ErrSlotEmpty)
	assert.Nil(t, data)
}

func TestMongoSlot_SaveOverwriteDelete(t *testing.T) {
	slot, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, slot.Save(ctx, "s-1", []byte(`[{"product_id":"A","unit_price":"1","quantity":1}]`)))
	require.NoError(t, slot.Save(ctx, "s-1", []byte(`[]`)))

	data, err := slot.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	require.NoError(t, slot.Delete(ctx, "s-1"))
	_, err = slot.Load(ctx, "s-1")
	assert.ErrorIs(t, err, cache.ErrSlotEmpty)
}
