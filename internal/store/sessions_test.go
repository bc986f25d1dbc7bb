package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionStore(NewRedisKV(client)), mr
}

func TestSessionStore_PutGet(t *testing.T) {
	s, _ := newTestSessionStore(t)

	rec := SessionRecord{UserID: "user-1", GroupID: "main-1", CreatedAt: time.Now()}
	require.NoError(t, s.Put(context.Background(), "jti-1", rec, time.Hour))

	got, err := s.Get(context.Background(), "jti-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, "main-1", got.GroupID)
}

func TestSessionStore_Revoke(t *testing.T) {
	s, _ := newTestSessionStore(t)

	rec := SessionRecord{UserID: "user-1", GroupID: "main-1", CreatedAt: time.Now()}
	require.NoError(t, s.Put(context.Background(), "jti-1", rec, time.Hour))
	require.NoError(t, s.Revoke(context.Background(), "jti-1"))

	_, err := s.Get(context.Background(), "jti-1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestSessionStore_ExpiresWithTTL(t *testing.T) {
	s, mr := newTestSessionStore(t)

	rec := SessionRecord{UserID: "user-1", GroupID: "main-1", CreatedAt: time.Now()}
	require.NoError(t, s.Put(context.Background(), "jti-1", rec, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := s.Get(context.Background(), "jti-1")
	require.ErrorIs(t, err, ErrMiss)
}
