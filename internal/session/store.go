package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trendflow/member/internal/cache"
)

// Key prefixes
const (
	refreshSessionPrefix = "session:refresh:"
	accessRecordPrefix   = "session:access:"
)

// TokenStore owns both record kinds. Every write carries its own TTL equal to
// the issuing provider's lifetime, so stale records self-expire without a
// background reaper. Puts are unconditional upserts.
type TokenStore interface {
	PutRefreshSession(ctx context.Context, s *RefreshSession, ttl time.Duration) error
	GetRefreshSession(ctx context.Context, refreshToken string) (*RefreshSession, error)
	DeleteRefreshSession(ctx context.Context, refreshToken string) error
	PutAccessTokenRecord(ctx context.Context, rec *AccessTokenRecord, ttl time.Duration) error
	GetAccessTokenRecord(ctx context.Context, accessToken string) (*AccessTokenRecord, error)
}

type tokenStore struct {
	cache cache.Cache
}

// NewTokenStore returns a TokenStore layered on the TTL cache.
func NewTokenStore(c cache.Cache) TokenStore {
	return &tokenStore{cache: c}
}

func (t *tokenStore) PutRefreshSession(ctx context.Context, s *RefreshSession, ttl time.Duration) error {
	return t.put(ctx, refreshSessionPrefix+s.RefreshToken, s, ttl)
}

func (t *tokenStore) GetRefreshSession(ctx context.Context, refreshToken string) (*RefreshSession, error) {
	s := &RefreshSession{}
	if err := t.get(ctx, refreshSessionPrefix+refreshToken, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteRefreshSession is idempotent: deleting an absent key is not an error.
func (t *tokenStore) DeleteRefreshSession(ctx context.Context, refreshToken string) error {
	if err := t.cache.Delete(ctx, refreshSessionPrefix+refreshToken); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (t *tokenStore) PutAccessTokenRecord(ctx context.Context, rec *AccessTokenRecord, ttl time.Duration) error {
	return t.put(ctx, accessRecordPrefix+rec.AccessToken, rec, ttl)
}

func (t *tokenStore) GetAccessTokenRecord(ctx context.Context, accessToken string) (*AccessTokenRecord, error) {
	rec := &AccessTokenRecord{}
	if err := t.get(ctx, accessRecordPrefix+accessToken, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (t *tokenStore) put(ctx context.Context, key string, record interface{}, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := t.cache.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (t *tokenStore) get(ctx context.Context, key string, record interface{}) error {
	val, err := t.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal([]byte(val), record); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
