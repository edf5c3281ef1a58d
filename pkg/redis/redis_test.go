package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*miniredis.Miniredis, RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	a, err := NewRedisAdapter(t.Name()+"-"+mr.Addr(), "rw:", &Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, a
}

func TestNewRedisAdapter_CachedByName(t *testing.T) {
	mr, a := newTestAdapter(t)
	again, err := NewRedisAdapter(t.Name()+"-"+mr.Addr(), "ignored:", &Options{Addrs: []string{"127.0.0.1:1"}})
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = NewRedisAdapter(t.Name()+"-unreachable", "", &Options{Addrs: []string{"127.0.0.1:1"}, DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	assert.Error(t, err)
}

func TestKeyValue(t *testing.T) {
	ctx := context.Background()
	mr, a := newTestAdapter(t)

	require.NoError(t, a.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("rw:k"))

	v, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	_, err = a.Get(ctx, "missing")
	assert.ErrorIs(t, err, NilError)

	ok, err := a.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := a.Exist(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, a.Del(ctx, "k"))
	assert.False(t, mr.Exists("rw:k"))
}

func TestDelIfValue(t *testing.T) {
	ctx := context.Background()
	mr, a := newTestAdapter(t)

	ok, err := a.SetNX(ctx, "lock", []byte("owner-a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := a.DelIfValue(ctx, "lock", []byte("owner-b"))
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists("rw:lock"))

	deleted, err = a.DelIfValue(ctx, "lock", []byte("owner-a"))
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("rw:lock"))
}

func TestExpireIfValue(t *testing.T) {
	ctx := context.Background()
	mr, a := newTestAdapter(t)

	_, err := a.SetNX(ctx, "lock", []byte("owner-a"), time.Minute)
	require.NoError(t, err)

	renewed, err := a.ExpireIfValue(ctx, "lock", []byte("owner-b"), time.Hour)
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Equal(t, time.Minute, mr.TTL("rw:lock"))

	renewed, err = a.ExpireIfValue(ctx, "lock", []byte("owner-a"), time.Hour)
	require.NoError(t, err)
	assert.True(t, renewed)
	assert.Equal(t, time.Hour, mr.TTL("rw:lock"))

	renewed, err = a.ExpireIfValue(ctx, "missing", []byte("owner-a"), time.Hour)
	require.NoError(t, err)
	assert.False(t, renewed)
}

func TestIncr(t *testing.T) {
	ctx := context.Background()
	mr, a := newTestAdapter(t)

	for want := int64(1); want <= 3; want++ {
		got, err := a.Incr(ctx, "retries", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Hour, mr.TTL("rw:retries"))

	mr.FastForward(2 * time.Hour)
	got, err := a.Incr(ctx, "retries", time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)
}

func TestStreams(t *testing.T) {
	ctx := context.Background()
	_, a := newTestAdapter(t)

	require.NoError(t, a.XGroupCreateMkStream(ctx, "jobs", "workers", "0"))
	id, err := a.XAdd(ctx, "jobs", map[string]interface{}{"order_id": "42"})
	require.NoError(t, err)

	n, err := a.XLen(ctx, "jobs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	msgs, err := a.XReadGroup(ctx, "workers", "c1", "jobs", ">", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "42", msgs[0].Values["order_id"])

	pending, err := a.XPending(ctx, "jobs", "workers")
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)

	claimed, err := a.XClaim(ctx, "jobs", "workers", "c2", 0, id)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	ext, err := a.XPendingExt(ctx, "jobs", "workers", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, ext, 1)
	assert.Equal(t, "c2", ext[0].Consumer)

	require.NoError(t, a.XAck(ctx, "jobs", "workers", id))
	ext, err = a.XPendingExt(ctx, "jobs", "workers", "-", "+", 10)
	require.NoError(t, err)
	assert.Empty(t, ext)
}
