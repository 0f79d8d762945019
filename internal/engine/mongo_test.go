package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// These tests need a reachable MongoDB, e.g.
// OBJECTS_TEST_MONGO_URL=mongodb://127.0.0.1:27017 go test ./internal/engine
func mongoStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("OBJECTS_TEST_MONGO_URL")
	if url == "" {
		t.Skip("OBJECTS_TEST_MONGO_URL not set")
	}
	return NewStore(&MongoDialer{
		URL:            url,
		Database:       "objects_test",
		Collection:     "c" + bson.NewObjectID().Hex(),
		ConnectTimeout: 5 * time.Second,
	})
}

func TestMongo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := mongoStore(t)

	uid, err := s.InsertOne(ctx, Resource{"object": "lamp", "nested": map[string]any{"watts": float64(40)}})
	require.NoError(t, err)

	got, err := s.FindOne(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, Resource{"uid": uid, "object": "lamp", "nested": map[string]any{"watts": float64(40)}}, got)

	replaced, err := s.PutOne(ctx, Resource{"uid": uid, "color": "red"})
	require.NoError(t, err)
	assert.Equal(t, Resource{"uid": uid, "color": "red"}, replaced)

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{uid}, ids)

	require.NoError(t, s.DeleteOne(ctx, uid))
	require.NoError(t, s.DeleteOne(ctx, uid))
	_, err = s.FindOne(ctx, uid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongo_Unreachable(t *testing.T) {
	s := NewStore(&MongoDialer{
		URL:            "mongodb://127.0.0.1:1",
		Database:       "objects_test",
		Collection:     "objects",
		ConnectTimeout: 200 * time.Millisecond,
	})
	_, err := s.ListIDs(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}
