package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendflow/member/internal/cache"
	"github.com/trendflow/member/internal/config"
	"github.com/trendflow/member/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, fields ...logger.Field)  {}
func (m *mockLogger) Info(msg string, fields ...logger.Field)   {}
func (m *mockLogger) Warn(msg string, fields ...logger.Field)   {}
func (m *mockLogger) Error(msg string, fields ...logger.Field)  {}
func (m *mockLogger) Fatal(msg string, fields ...logger.Field)  {}
func (m *mockLogger) Panic(msg string, fields ...logger.Field)  {}
func (m *mockLogger) With(fields ...logger.Field) logger.Logger { return m }
func (m *mockLogger) Sync() error                               { return nil }
func (m *mockLogger) SetLevel(level logger.Level)               {}

// Test setup helper
func SetupTestStore(t *testing.T) (TokenStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	c, err := cache.NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, &mockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return NewTokenStore(c), mr
}

func testRefreshSession(now time.Time) *RefreshSession {
	return &RefreshSession{
		RefreshToken:     "RT1",
		RefreshTTL:       2592000,
		RefreshExpiresAt: now.Add(2592000 * time.Second),
		AccessToken:      "AT1",
		AccessTTL:        3600,
		AccessExpiresAt:  now.Add(3600 * time.Second),
		MemberID:         42,
		ProviderCode:     "KAKAO",
		ProviderUserID:   "kakao-9001",
	}
}

func TestTokenStore_RefreshSessionRoundTrip(t *testing.T) {
	store, _ := SetupTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	sess := testRefreshSession(now)
	require.NoError(t, store.PutRefreshSession(ctx, sess, time.Hour))

	got, err := store.GetRefreshSession(ctx, "RT1")
	require.NoError(t, err)
	assert.Equal(t, "AT1", got.AccessToken)
	assert.Equal(t, int64(42), got.MemberID)
	assert.Equal(t, "KAKAO", got.ProviderCode)
	assert.True(t, got.RefreshExpiresAt.Equal(sess.RefreshExpiresAt))
}

func TestTokenStore_GetRefreshSession_NotFound(t *testing.T) {
	store, _ := SetupTestStore(t)

	_, err := store.GetRefreshSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_RefreshSession_Expires(t *testing.T) {
	store, mr := SetupTestStore(t)
	ctx := context.Background()

	sess := testRefreshSession(time.Now())
	require.NoError(t, store.PutRefreshSession(ctx, sess, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.GetRefreshSession(ctx, "RT1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_DeleteRefreshSession_Idempotent(t *testing.T) {
	store, _ := SetupTestStore(t)
	ctx := context.Background()

	sess := testRefreshSession(time.Now())
	require.NoError(t, store.PutRefreshSession(ctx, sess, time.Hour))

	assert.NoError(t, store.DeleteRefreshSession(ctx, "RT1"))
	_, err := store.GetRefreshSession(ctx, "RT1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Second delete of the same key succeeds
	assert.NoError(t, store.DeleteRefreshSession(ctx, "RT1"))
}

func TestTokenStore_AccessRecord_UpsertOverwrites(t *testing.T) {
	store, _ := SetupTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	rec := &AccessTokenRecord{
		AccessToken:     "AT1",
		AccessExpiresAt: now.Add(time.Hour),
		RefreshToken:    "RT1",
		MemberID:        42,
		ProviderCode:    "KAKAO",
		ProviderUserID:  "kakao-9001",
		Valid:           true,
	}
	require.NoError(t, store.PutAccessTokenRecord(ctx, rec, time.Hour))

	got, err := store.GetAccessTokenRecord(ctx, "AT1")
	require.NoError(t, err)
	assert.True(t, got.Valid)

	// Flip validity through a complete replacement write
	rec.Valid = false
	require.NoError(t, store.PutAccessTokenRecord(ctx, rec, time.Hour))

	got, err = store.GetAccessTokenRecord(ctx, "AT1")
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.Equal(t, "RT1", got.RefreshToken)
}

func TestTokenStore_AccessRecord_Expires(t *testing.T) {
	store, mr := SetupTestStore(t)
	ctx := context.Background()

	rec := &AccessTokenRecord{
		AccessToken:     "AT1",
		AccessExpiresAt: time.Now().Add(time.Minute),
		RefreshToken:    "RT1",
		MemberID:        42,
		Valid:           true,
	}
	require.NoError(t, store.PutAccessTokenRecord(ctx, rec, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.GetAccessTokenRecord(ctx, "AT1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_StoreUnavailable(t *testing.T) {
	store, mr := SetupTestStore(t)
	ctx := context.Background()

	mr.Close()

	err := store.PutRefreshSession(ctx, testRefreshSession(time.Now()), time.Hour)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.GetRefreshSession(ctx, "RT1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
