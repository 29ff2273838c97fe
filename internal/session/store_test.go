package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() State {
	return State{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         json.RawMessage(`{"id":4,"username":"ana","user_type":"client"}`),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	require.NoError(t, store.Save(ctx, sampleState()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	var raw map[string]json.RawMessage
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, KeyToken)
	assert.Contains(t, raw, KeyRefreshToken)
	assert.Contains(t, raw, KeyUser)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.JSONEq(t, string(sampleState().User), string(got.User))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "portal:session", "")
	require.NoError(t, store.Save(ctx, sampleState()))

	assert.Equal(t, "access-1", mr.HGet("portal:session:default", KeyToken))
	assert.Equal(t, "refresh-1", mr.HGet("portal:session:default", KeyRefreshToken))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.JSONEq(t, string(sampleState().User), string(got.User))

	// Saving a state without a user must not leave the old blob behind.
	require.NoError(t, store.Save(ctx, State{AccessToken: "a2", RefreshToken: "r2"}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.User)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("portal:session:default"))
}

func TestRedisStoreProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	owner := NewRedisStore(client, "portal:session", "owner")
	client2 := NewRedisStore(client, "portal:session", "client")
	require.NoError(t, owner.Save(ctx, sampleState()))

	got, err := client2.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, sampleState()))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
	require.NoError(t, store.Clear(ctx))
	got, _ = store.Load(ctx)
	assert.True(t, got.Empty())
}

func allStores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "session.json")),
		"redis":  NewRedisStore(client, "portal:session", "test"),
		"memory": NewMemoryStore(),
	}
}

func TestSwapAccessToken(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			swapped, err := store.SwapAccessToken(ctx, "refresh-1", "access-2")
			require.NoError(t, err)
			assert.False(t, swapped, "empty store is never written")
			got, _ := store.Load(ctx)
			assert.True(t, got.Empty())

			require.NoError(t, store.Save(ctx, sampleState()))
			swapped, err = store.SwapAccessToken(ctx, "refresh-0", "access-2")
			require.NoError(t, err)
			assert.False(t, swapped)

			swapped, err = store.SwapAccessToken(ctx, "refresh-1", "access-2")
			require.NoError(t, err)
			assert.True(t, swapped)
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "access-2", got.AccessToken)
			assert.Equal(t, "refresh-1", got.RefreshToken)
			assert.JSONEq(t, string(sampleState().User), string(got.User))
		})
	}
}

func TestClearIfRefresh(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, sampleState()))

			cleared, err := store.ClearIfRefresh(ctx, "refresh-0")
			require.NoError(t, err)
			assert.False(t, cleared)
			got, _ := store.Load(ctx)
			assert.Equal(t, "access-1", got.AccessToken)

			cleared, err = store.ClearIfRefresh(ctx, "refresh-1")
			require.NoError(t, err)
			assert.True(t, cleared)
			got, _ = store.Load(ctx)
			assert.True(t, got.Empty())
		})
	}
}
