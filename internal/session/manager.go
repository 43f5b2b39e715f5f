package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trendflow/member/internal/logger"
	"github.com/trendflow/member/internal/member"
	"github.com/trendflow/member/internal/provider"
)

// Manager orchestrates the lifetime of a federated session: login, rotation
// on refresh, two-tier verification and logout. It is stateless and safe for
// concurrent use; all mutable state lives in the TokenStore, and every state
// transition is a complete replacement record written in a single put.
type Manager struct {
	providers *provider.Registry
	members   member.Resolver
	store     TokenStore
	logger    logger.Logger
	now       func() time.Time
}

// ManagerOption modifies a Manager at construction.
type ManagerOption func(*Manager)

// WithNow sets the clock (primarily for testing).
func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager wires the session manager with its collaborators.
func NewManager(providers *provider.Registry, members member.Resolver, store TokenStore, l logger.Logger, opts ...ManagerOption) (*Manager, error) {
	if providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if members == nil {
		return nil, errors.New("member resolver is required")
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}
	if l == nil {
		l = logger.Global()
	}

	m := &Manager{
		providers: providers,
		members:   members,
		store:     store,
		logger:    l,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login exchanges the provider authorization code for a token pair, resolves
// the member behind the federated identity and opens a session. Nothing is
// handed to the caller unless both records were stored.
func (m *Manager) Login(ctx context.Context, providerCode, authCode string) (*LoginResult, error) {
	adapter, err := m.providers.Get(providerCode)
	if err != nil {
		return nil, err
	}

	grant, err := adapter.ExchangeCode(ctx, authCode)
	if err != nil {
		return nil, err
	}

	identity, err := adapter.FetchProfile(ctx, grant.AccessToken)
	if err != nil {
		return nil, err
	}

	mem, err := m.members.ResolveOrCreate(ctx, providerCode, identity.ProviderUserID, identity.Email, identity.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member: %w", err)
	}

	now := m.now()
	sess := &RefreshSession{
		RefreshToken:     grant.RefreshToken,
		RefreshTTL:       grant.RefreshTTL,
		RefreshExpiresAt: now.Add(time.Duration(grant.RefreshTTL) * time.Second),
		AccessToken:      grant.AccessToken,
		AccessTTL:        grant.AccessTTL,
		AccessExpiresAt:  now.Add(time.Duration(grant.AccessTTL) * time.Second),
		MemberID:         mem.ID,
		ProviderCode:     providerCode,
		ProviderUserID:   identity.ProviderUserID,
	}

	// Refresh session first: an orphaned session is harmless, an access
	// record without its session is not checked against one anyway, so the
	// write order biases toward fail-closed.
	if err := m.store.PutRefreshSession(ctx, sess, time.Duration(grant.RefreshTTL)*time.Second); err != nil {
		return nil, err
	}
	rec := &AccessTokenRecord{
		AccessToken:     grant.AccessToken,
		AccessExpiresAt: sess.AccessExpiresAt,
		RefreshToken:    grant.RefreshToken,
		MemberID:        mem.ID,
		ProviderCode:    providerCode,
		ProviderUserID:  identity.ProviderUserID,
		Valid:           true,
	}
	if err := m.store.PutAccessTokenRecord(ctx, rec, time.Duration(grant.AccessTTL)*time.Second); err != nil {
		return nil, err
	}

	if err := m.members.UpdateRefreshToken(ctx, mem.ID, grant.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to persist member refresh token: %w", err)
	}

	m.logger.Info("Member logged in",
		logger.Int64("member_id", mem.ID),
		logger.String("provider", providerCode))

	return &LoginResult{
		Name:         mem.Name,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	}, nil
}

// Refresh rotates the token pair behind refreshToken. The new session keeps
// the original absolute refresh expiry, so continuous refreshing never
// extends a session past its first login's refresh lifetime.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	sess, err := m.store.GetRefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown or expired refresh token", ErrSessionNotFound)
		}
		return nil, err
	}

	adapter, err := m.providers.Get(sess.ProviderCode)
	if err != nil {
		return nil, err
	}

	grant, err := adapter.Refresh(ctx, sess.RefreshToken, sess.RefreshTTL)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sessionTTL := sess.RefreshExpiresAt.Sub(now)
	if sessionTTL <= 0 {
		return nil, fmt.Errorf("%w: refresh window closed", ErrSessionNotFound)
	}

	next := &RefreshSession{
		RefreshToken:     grant.RefreshToken,
		RefreshTTL:       grant.RefreshTTL,
		RefreshExpiresAt: sess.RefreshExpiresAt,
		AccessToken:      grant.AccessToken,
		AccessTTL:        grant.AccessTTL,
		AccessExpiresAt:  now.Add(time.Duration(grant.AccessTTL) * time.Second),
		MemberID:         sess.MemberID,
		ProviderCode:     sess.ProviderCode,
		ProviderUserID:   sess.ProviderUserID,
	}
	if err := m.store.PutRefreshSession(ctx, next, sessionTTL); err != nil {
		return nil, err
	}

	newRec := &AccessTokenRecord{
		AccessToken:     grant.AccessToken,
		AccessExpiresAt: next.AccessExpiresAt,
		RefreshToken:    grant.RefreshToken,
		MemberID:        sess.MemberID,
		ProviderCode:    sess.ProviderCode,
		ProviderUserID:  sess.ProviderUserID,
		Valid:           true,
	}
	if err := m.store.PutAccessTokenRecord(ctx, newRec, time.Duration(grant.AccessTTL)*time.Second); err != nil {
		return nil, err
	}

	// The superseded access token stays inspectable until its own expiry,
	// it just stops being valid. A provider re-issuing the unexpired access
	// token leaves nothing to supersede.
	if remaining := sess.AccessExpiresAt.Sub(now); remaining > 0 && sess.AccessToken != grant.AccessToken {
		old := &AccessTokenRecord{
			AccessToken:     sess.AccessToken,
			AccessExpiresAt: sess.AccessExpiresAt,
			RefreshToken:    grant.RefreshToken,
			MemberID:        sess.MemberID,
			ProviderCode:    sess.ProviderCode,
			ProviderUserID:  sess.ProviderUserID,
			Valid:           false,
		}
		if err := m.store.PutAccessTokenRecord(ctx, old, remaining); err != nil {
			return nil, err
		}
	}

	// Providers that do not rotate refresh tokens keep the same key; only a
	// changed key leaves a superseded record to drop.
	if sess.RefreshToken != grant.RefreshToken {
		if err := m.store.DeleteRefreshSession(ctx, sess.RefreshToken); err != nil {
			return nil, err
		}
	}

	if err := m.members.UpdateRefreshToken(ctx, sess.MemberID, grant.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to persist member refresh token: %w", err)
	}

	m.logger.Info("Session refreshed",
		logger.Int64("member_id", sess.MemberID),
		logger.String("provider", sess.ProviderCode))

	return &TokenPair{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	}, nil
}

// VerifyAccessToken is the cheap check run on every authenticated request: it
// consults only the local record, never the provider.
func (m *Manager) VerifyAccessToken(ctx context.Context, accessToken string) (*AccessTokenRecord, error) {
	rec, err := m.store.GetAccessTokenRecord(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown access token", ErrInvalidToken)
		}
		return nil, err
	}
	if !rec.Valid {
		return nil, fmt.Errorf("%w: token was superseded or logged out", ErrInvalidToken)
	}
	if m.now().After(rec.AccessExpiresAt) {
		return nil, fmt.Errorf("%w: expired at %s", ErrTokenExpired, rec.AccessExpiresAt)
	}
	return rec, nil
}

// VerifyAccessTokenAuthoritative re-checks the token with its issuing
// provider and compares the reported provider user id against the stored one.
// Reserved for higher-sensitivity operations.
func (m *Manager) VerifyAccessTokenAuthoritative(ctx context.Context, accessToken string) (*AccessTokenRecord, error) {
	rec, err := m.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	adapter, err := m.providers.Get(rec.ProviderCode)
	if err != nil {
		return nil, err
	}

	providerUserID, err := adapter.VerifyToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if providerUserID != rec.ProviderUserID {
		m.logger.Warn("Provider identity mismatch",
			logger.Int64("member_id", rec.MemberID),
			logger.String("provider", rec.ProviderCode))
		return nil, fmt.Errorf("%w: token belongs to a different upstream identity", ErrIdentityMismatch)
	}
	return rec, nil
}

// Logout revokes the upstream token best-effort, invalidates the current
// access token and deletes the refresh session. The local session always
// ends, reachable provider or not.
func (m *Manager) Logout(ctx context.Context, refreshToken string) error {
	sess, err := m.store.GetRefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown or expired refresh token", ErrSessionNotFound)
		}
		return err
	}

	rec, err := m.store.GetAccessTokenRecord(ctx, sess.AccessToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Access record gone while the session survived: treated as
			// already logged out.
			return fmt.Errorf("%w: access record missing", ErrSessionNotFound)
		}
		return err
	}

	if adapter, err := m.providers.Get(sess.ProviderCode); err == nil {
		rev := provider.Revocation{
			ProviderUserID: sess.ProviderUserID,
			RefreshToken:   sess.RefreshToken,
		}
		if err := adapter.RevokeToken(ctx, rev); err != nil {
			m.logger.Warn("Upstream token revocation failed",
				logger.Int64("member_id", sess.MemberID),
				logger.String("provider", sess.ProviderCode),
				logger.Error(err))
		}
	} else {
		m.logger.Warn("No adapter for provider at logout, skipping upstream revoke",
			logger.String("provider", sess.ProviderCode))
	}

	now := m.now()
	if remaining := rec.AccessExpiresAt.Sub(now); remaining > 0 {
		invalidated := &AccessTokenRecord{
			AccessToken:     rec.AccessToken,
			AccessExpiresAt: rec.AccessExpiresAt,
			RefreshToken:    rec.RefreshToken,
			MemberID:        rec.MemberID,
			ProviderCode:    rec.ProviderCode,
			ProviderUserID:  rec.ProviderUserID,
			Valid:           false,
		}
		if err := m.store.PutAccessTokenRecord(ctx, invalidated, remaining); err != nil {
			return err
		}
	}

	if err := m.store.DeleteRefreshSession(ctx, refreshToken); err != nil {
		return err
	}

	m.logger.Info("Member logged out",
		logger.Int64("member_id", sess.MemberID),
		logger.String("provider", sess.ProviderCode))
	return nil
}
