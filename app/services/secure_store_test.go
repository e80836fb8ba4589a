package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newRedisBackend(t *testing.T) (*RedisStoreBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreBackend(client), mr
}

func newTestStore(t *testing.T, backend StoreBackend) (*SecureStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := NewSecureStore(backend, SecureStoreOptions{
		Prefix:         "test_",
		ObfuscationKey: "unit-test-key",
		Now:            clock.Now,
	})
	return store, clock
}

func backends(t *testing.T) map[string]StoreBackend {
	redisBackend, _ := newRedisBackend(t)
	return map[string]StoreBackend{
		"memory": NewMemoryStoreBackend(),
		"redis":  redisBackend,
	}
}

func TestSecureStore_SetGetRoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store, _ := newTestStore(t, backend)
			ctx := context.Background()

			type settings struct {
				Theme string `json:"theme"`
				Rows  int    `json:"rows"`
			}

			require.NoError(t, store.SetItem(ctx, "plain", settings{Theme: "dark", Rows: 25}, SetOptions{}))
			require.NoError(t, store.SetItem(ctx, "hidden", "someone@example.com", SetOptions{Encrypt: true}))

			var got settings
			ok, err := store.GetItem(ctx, "plain", &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, settings{Theme: "dark", Rows: 25}, got)

			var email string
			ok, err = store.GetItem(ctx, "hidden", &email)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "someone@example.com", email)

			raw, found, err := backend.Get(ctx, "test_hidden")
			require.NoError(t, err)
			require.True(t, found)
			assert.NotContains(t, raw, "someone@example.com")
			assert.Contains(t, raw, `"encrypted":true`)
		})
	}
}

func TestSecureStore_EncryptedRoundTripAnyValue(t *testing.T) {
	type profile struct {
		Name  string   `json:"name"`
		Tags  []string `json:"tags"`
		Level int      `json:"level"`
	}

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store, _ := newTestStore(t, backend)
			ctx := context.Background()
			encrypted := SetOptions{Encrypt: true}

			require.NoError(t, store.SetItem(ctx, "struct", profile{Name: "Ops", Tags: []string{"a", "b"}, Level: 3}, encrypted))
			var gotProfile profile
			ok, err := store.GetItem(ctx, "struct", &gotProfile)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, profile{Name: "Ops", Tags: []string{"a", "b"}, Level: 3}, gotProfile)

			require.NoError(t, store.SetItem(ctx, "map", map[string]any{"theme": "dark", "rows": 25.0, "compact": true}, encrypted))
			var gotMap map[string]any
			ok, err = store.GetItem(ctx, "map", &gotMap)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, map[string]any{"theme": "dark", "rows": 25.0, "compact": true}, gotMap)

			require.NoError(t, store.SetItem(ctx, "number", 1234.5, encrypted))
			var gotNumber float64
			ok, err = store.GetItem(ctx, "number", &gotNumber)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.InDelta(t, 1234.5, gotNumber, 1e-9)

			require.NoError(t, store.SetItem(ctx, "nil", nil, encrypted))
			gotNil := any("sentinel")
			ok, err = store.GetItem(ctx, "nil", &gotNil)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Nil(t, gotNil)

			raw, found, err := backend.Get(ctx, "test_struct")
			require.NoError(t, err)
			require.True(t, found)
			assert.NotContains(t, raw, "Ops")
		})
	}
}

func TestSecureStore_ConcurrentFailuresAreAllCounted(t *testing.T) {
	const attempts = 50

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store, _ := newTestStore(t, backend)
			ctx := context.Background()

			var wg sync.WaitGroup
			errs := make(chan error, attempts)
			for range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- store.RecordLoginAttempt(ctx, "target@example.com", false)
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			n, err := store.FailedAttempts(ctx, "target@example.com")
			require.NoError(t, err)
			assert.Equal(t, attempts, n)

			locked, err := store.IsAccountLocked(ctx, "target@example.com")
			require.NoError(t, err)
			assert.True(t, locked)
		})
	}
}

func TestSecureStore_Expiry(t *testing.T) {
	store, clock := newTestStore(t, NewMemoryStoreBackend())
	ctx := context.Background()

	expiry := clock.now.Add(time.Hour)
	require.NoError(t, store.SetItem(ctx, "session", "abc", SetOptions{Expiry: &expiry}))

	var v string
	ok, err := store.GetItem(ctx, "session", &v)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Hour + time.Millisecond)
	ok, err = store.GetItem(ctx, "session", &v)
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.backend.Keys(ctx, "test_")
	require.NoError(t, err)
	assert.Empty(t, keys, "expired item should be evicted on read")
}

func TestSecureStore_ExpireImmediately(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryStoreBackend())
	ctx := context.Background()

	expiry := ExpireImmediately
	require.NoError(t, store.SetItem(ctx, "gone", 42, SetOptions{Expiry: &expiry}))

	var n int
	ok, err := store.GetItem(ctx, "gone", &n)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecureStore_MalformedAndMissing(t *testing.T) {
	backend := NewMemoryStoreBackend()
	store, _ := newTestStore(t, backend)
	ctx := context.Background()

	var v string
	ok, err := store.GetItem(ctx, "missing", &v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, "test_broken", "{not json", 0))
	ok, err = store.GetItem(ctx, "broken", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecureStore_Clear(t *testing.T) {
	backend := NewMemoryStoreBackend()
	store, _ := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "other_key", "keep", 0))
	require.NoError(t, store.SetItem(ctx, "a", 1, SetOptions{}))
	require.NoError(t, store.SetItem(ctx, "b", 2, SetOptions{}))

	require.NoError(t, store.Clear(ctx))

	keys, err := backend.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other_key"}, keys)
}

func TestSecureStore_RedisTTL(t *testing.T) {
	backend, mr := newRedisBackend(t)
	store, clock := newTestStore(t, backend)
	ctx := context.Background()

	expiry := clock.now.Add(10 * time.Minute)
	require.NoError(t, store.SetItem(ctx, "ttl", true, SetOptions{Expiry: &expiry}))
	assert.Equal(t, 11*time.Minute, mr.TTL("test_ttl"))

	require.NoError(t, store.SetItem(ctx, "forever", true, SetOptions{}))
	assert.Equal(t, time.Duration(0), mr.TTL("test_forever"))
}

func TestSecureStore_RememberedLogin(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store, clock := newTestStore(t, backend)
			ctx := context.Background()

			require.NoError(t, store.SaveRememberedLogin(ctx, "client-1", "staff@example.com", true, 24*time.Hour))

			remembered, err := store.RememberedLogin(ctx, "client-1")
			require.NoError(t, err)
			require.NotNil(t, remembered)
			assert.Equal(t, "staff@example.com", remembered.Email)

			other, err := store.RememberedLogin(ctx, "client-2")
			require.NoError(t, err)
			assert.Nil(t, other)

			clock.Advance(25 * time.Hour)
			remembered, err = store.RememberedLogin(ctx, "client-1")
			require.NoError(t, err)
			assert.Nil(t, remembered)
		})
	}
}

func TestSecureStore_RememberFalseClears(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryStoreBackend())
	ctx := context.Background()

	require.NoError(t, store.SaveRememberedLogin(ctx, "c", "staff@example.com", true, time.Hour))
	require.NoError(t, store.SaveRememberedLogin(ctx, "c", "staff@example.com", false, time.Hour))

	remembered, err := store.RememberedLogin(ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, remembered)
}

func TestSecureStore_Lockout(t *testing.T) {
	store, clock := newTestStore(t, NewMemoryStoreBackend())
	ctx := context.Background()
	email := "Locked@Example.com"

	first := clock.now
	for i := 0; i < 4; i++ {
		require.NoError(t, store.RecordLoginAttempt(ctx, email, false))
		clock.Advance(time.Minute)
	}

	locked, err := store.IsAccountLocked(ctx, email)
	require.NoError(t, err)
	assert.False(t, locked)

	until, err := store.LockedUntil(ctx, email)
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	require.NoError(t, store.RecordLoginAttempt(ctx, "locked@example.com", false))

	locked, err = store.IsAccountLocked(ctx, email)
	require.NoError(t, err)
	assert.True(t, locked)

	n, err := store.FailedAttempts(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	until, err = store.LockedUntil(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Hour).UnixMilli(), until.UnixMilli())

	// the oldest failure leaves the window and the lock lifts
	clock.now = first.Add(time.Hour + time.Second)
	locked, err = store.IsAccountLocked(ctx, email)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestSecureStore_SuccessClearsAttempts(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryStoreBackend())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordLoginAttempt(ctx, "a@example.com", false))
	}
	require.NoError(t, store.RecordLoginAttempt(ctx, "a@example.com", true))

	n, err := store.FailedAttempts(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSecureStore_LastLoginAndSettings(t *testing.T) {
	store, clock := newTestStore(t, NewMemoryStoreBackend())
	ctx := context.Background()

	last, err := store.LastLoginTime(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, store.SetLastLoginTime(ctx, "A@example.com", clock.now))
	last, err = store.LastLoginTime(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, clock.now.Equal(*last))

	settings, err := store.AppSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings)

	require.NoError(t, store.SaveAppSettings(ctx, map[string]any{"currency": "EUR"}))
	settings, err = store.AppSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EUR", settings["currency"])
}
