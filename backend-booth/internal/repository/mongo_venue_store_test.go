package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booth-rush/pkg/mongodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToVenueChange(t *testing.T) {
	v := newTestVenue(t, "India")

	insert := mongoChangeEvent{OperationType: "insert", FullDocument: &mongoVenueDocument{ID: v.ID, Version: 1, Venue: v}}
	c, ok := toVenueChange(insert)
	require.True(t, ok)
	assert.Equal(t, ChangeCreated, c.Kind)
	assert.Equal(t, Version(1), c.Version)

	replace := mongoChangeEvent{OperationType: "replace", FullDocument: &mongoVenueDocument{ID: v.ID, Version: 2, Venue: v}}
	c, ok = toVenueChange(replace)
	require.True(t, ok)
	assert.Equal(t, ChangeUpdated, c.Kind)

	del := mongoChangeEvent{OperationType: "delete"}
	del.DocumentKey.ID = v.ID
	c, ok = toVenueChange(del)
	require.True(t, ok)
	assert.Equal(t, ChangeDeleted, c.Kind)
	assert.Equal(t, v.ID, c.VenueID)

	tombstone := mongoChangeEvent{OperationType: "update", FullDocument: &mongoVenueDocument{ID: v.ID, Version: 3, Deleted: true}}
	c, ok = toVenueChange(tombstone)
	require.True(t, ok)
	assert.Equal(t, ChangeDeleted, c.Kind)
	assert.Equal(t, Version(3), c.Version)
	assert.Nil(t, c.Venue)

	revive := mongoChangeEvent{OperationType: "update", FullDocument: &mongoVenueDocument{ID: v.ID, Version: 4, Venue: v}}
	c, ok = toVenueChange(revive)
	require.True(t, ok)
	assert.Equal(t, ChangeCreated, c.Kind)
	assert.Equal(t, Version(4), c.Version)

	_, ok = toVenueChange(mongoChangeEvent{OperationType: "invalidate"})
	assert.False(t, ok)
}

func TestMongoVenueStore_Contract(t *testing.T) {
	skipIfNoIntegration(t)

	cfg := mongodb.DefaultConfig()
	if uri := os.Getenv("TEST_MONGO_URI"); uri != "" {
		cfg.URI = uri
	}
	cfg.Database = "booth_test"

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, cfg)
	require.NoError(t, err)
	defer client.Close(ctx)

	store := NewMongoVenueStore(client.Collection("venues_"+uuid.NewString()[:8]), nil)
	defer store.Close()
	require.NoError(t, store.EnsureIndexes(ctx))

	runVenueStoreContract(t, store, os.Getenv("TEST_MONGO_REPLICA_SET") == "true")
}
