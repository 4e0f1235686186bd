package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreClient(client, "test:session:", ttl), mr
}

func TestRedisStore(t *testing.T) {
	st, _ := newMiniRedisStore(t, 0)
	runStoreContract(t, st)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	st, mr := newMiniRedisStore(t, 0)
	s := New("g", 10, "sys")
	require.NoError(t, st.Save(context.Background(), s))

	assert.True(t, mr.Exists("test:session:"+s.ID))
	members, err := mr.ZMembers("test:session:index")
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, members)
}

func TestRedisStore_ExpiredSnapshotsLeaveIndex(t *testing.T) {
	ctx := context.Background()
	st, mr := newMiniRedisStore(t, time.Minute)

	s := New("short lived", 10, "sys")
	require.NoError(t, st.Save(ctx, s))
	mr.FastForward(2 * time.Minute)

	_, err := st.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := st.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	members, err := mr.ZMembers("test:session:index")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	st, err := NewRedisStore(context.Background(), RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, DefaultKeyPrefix, st.prefix)
}
