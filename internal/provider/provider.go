package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider codes as stored on sessions and member rows.
const (
	CodeKakao  = "KAKAO"
	CodeGoogle = "GOOGLE"
)

var (
	// ErrUnsupportedProvider is returned by the registry for a code no
	// adapter was registered under. Configuration error, never retried.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	ErrExchangeFailed = errors.New("provider code exchange failed")
	ErrProfileFailed  = errors.New("provider profile fetch failed")
	ErrRefreshFailed  = errors.New("provider token refresh failed")
	ErrVerifyFailed   = errors.New("provider token verification failed")
	ErrRevokeFailed   = errors.New("provider token revocation failed")

	// ErrProviderUnavailable marks timeouts and transport failures. It is
	// kept distinct from the per-operation failures above so a caller can
	// tell "your token is bad" from "the provider is unreachable".
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// TokenGrant is the provider's answer to a code exchange or a refresh:
// a token pair with the provider-side lifetimes in seconds.
type TokenGrant struct {
	AccessToken  string
	AccessTTL    int64
	RefreshToken string
	RefreshTTL   int64
}

// Identity is the federated identity read from the provider's profile
// endpoint. Consumed once per login to resolve the local member.
type Identity struct {
	ProviderUserID string
	Email          string
	Name           string
}

// Revocation carries both identifiers an adapter may need to end the
// upstream session: Kakao unlinks by provider user id, Google revokes by
// refresh token.
type Revocation struct {
	ProviderUserID string
	RefreshToken   string
}

// Adapter is one identity provider's client. Implementations carry a bounded
// HTTP timeout; a timed-out call is reported as ErrProviderUnavailable, never
// as the operation's failure error.
type Adapter interface {
	Code() string
	ExchangeCode(ctx context.Context, authCode string) (*TokenGrant, error)
	FetchProfile(ctx context.Context, accessToken string) (*Identity, error)
	// Refresh exchanges the stored refresh token for a new grant. Providers
	// that omit a field in the response (Google rotates neither the refresh
	// token nor reports its lifetime) have the stored token and remainingTTL
	// echoed back in the grant.
	Refresh(ctx context.Context, refreshToken string, remainingTTL int64) (*TokenGrant, error)
	// VerifyToken asks the provider who the access token belongs to.
	VerifyToken(ctx context.Context, accessToken string) (string, error)
	// RevokeToken ends the upstream session. Callers treat failures as
	// best-effort and only log them.
	RevokeToken(ctx context.Context, rev Revocation) error
}

// Registry resolves adapters by provider code. It is built once at startup
// from config and injected; adding a provider means registering an adapter,
// not editing the session manager.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

func (r *Registry) Get(code string) (Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, code)
	}
	return a, nil
}

// Codes lists the registered provider codes.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	return codes
}
