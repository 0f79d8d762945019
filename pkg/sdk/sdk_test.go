package sdk_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-objects/internal/api"
	"github.com/celerix-dev/celerix-objects/internal/engine"
	"github.com/celerix-dev/celerix-objects/pkg/sdk"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestServer(t *testing.T) *sdk.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := engine.NewStore(engine.NewMemDialer("objects", nil, nil))
	srv := httptest.NewServer(api.NewRouter(&api.Handler{Store: store}, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return sdk.New(srv.URL, sdk.WithTimeout(5*time.Second))
}

func TestClient_Lifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestServer(t)

	require.NoError(t, client.Ping(ctx))

	created, err := client.Create(ctx, map[string]any{"object": "desk", "utility": "work"})
	require.NoError(t, err)
	uid := created.UID()
	require.NotEmpty(t, uid)
	assert.Equal(t, "desk", created["object"])

	got, err := client.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	uids, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{uid}, uids)

	locators, err := client.Locators(ctx)
	require.NoError(t, err)
	require.Len(t, locators, 1)
	assert.Contains(t, locators[0], "/api/objects/"+uid)

	replaced, err := client.Replace(ctx, uid, map[string]any{"object": "table"})
	require.NoError(t, err)
	assert.Equal(t, sdk.Object{"uid": uid, "object": "table"}, replaced)

	require.NoError(t, client.Delete(ctx, uid))
	require.NoError(t, client.Delete(ctx, uid))

	_, err = client.Get(ctx, uid)
	assert.True(t, sdk.IsNotFound(err), "expected 404, got %v", err)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	client := newTestServer(t)

	_, err := client.Create(ctx, map[string]any{"uid": "mine"})
	var apiErr *sdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "POST", apiErr.Verb)
	assert.Equal(t, api.MsgInvalidCreateAttribute, apiErr.Message)

	_, err = client.Replace(ctx, bson.NewObjectID().Hex(), map[string]any{"a": "b"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.MsgObjectNotFound, apiErr.Message)

	err = client.Delete(ctx, "123")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.MsgInvalidID, apiErr.Message)

	_, err = client.Get(ctx, "123")
	assert.True(t, sdk.IsNotFound(err))
}

func TestGenericHelpers(t *testing.T) {
	ctx := context.Background()
	client := newTestServer(t)

	type User struct {
		UID  string `json:"uid,omitempty"`
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	obj, err := sdk.CreateFrom(ctx, client, User{Name: "Alice", Age: 30})
	require.NoError(t, err)

	got, err := sdk.GetAs[User](ctx, client, obj.UID())
	require.NoError(t, err)
	assert.Equal(t, User{UID: obj.UID(), Name: "Alice", Age: 30}, got)

	_, err = sdk.CreateFrom(ctx, client, []int{1, 2})
	assert.Error(t, err)
}

func TestClient_Unreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := sdk.New("http://"+addr, sdk.WithRetries(0), sdk.WithTimeout(time.Second))
	_, err = client.List(context.Background())
	assert.Error(t, err)
	assert.False(t, sdk.IsNotFound(err))
}

func TestFromEnv(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := engine.NewStore(engine.NewMemDialer("objects", nil, nil))
	srv := httptest.NewServer(api.NewRouter(&api.Handler{Store: store}, zerolog.Nop()))
	defer srv.Close()

	t.Setenv("OBJECTS_API", srv.URL)
	require.NoError(t, sdk.FromEnv().Ping(context.Background()))
}
