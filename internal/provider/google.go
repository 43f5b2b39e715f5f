package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/trendflow/member/internal/config"
	"github.com/trendflow/member/internal/logger"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL   = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	googleProfile   = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleTokenInfo = "https://oauth2.googleapis.com/tokeninfo"
	googleRevoke    = "https://oauth2.googleapis.com/revoke"
)

type googleAdapter struct {
	oauth        *oauth2.Config
	profileURL   string
	tokenInfoURL string
	revokeURL    string
	refreshTTL   int64
	client       *http.Client
	logger       logger.Logger
}

// GoogleOption overrides adapter defaults, primarily for tests.
type GoogleOption func(*googleAdapter)

// WithGoogleEndpoints points the adapter at alternative URLs.
func WithGoogleEndpoints(authURL, tokenURL, profileURL, tokenInfoURL, revokeURL string) GoogleOption {
	return func(g *googleAdapter) {
		g.oauth.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		g.profileURL = profileURL
		g.tokenInfoURL = tokenInfoURL
		g.revokeURL = revokeURL
	}
}

// NewGoogle creates the Google adapter from config. Google never reports a
// refresh token lifetime, so the configured RefreshTokenTTL bounds sessions
// opened through it.
func NewGoogle(cfg config.GoogleConfig, l logger.Logger, opts ...GoogleOption) Adapter {
	g := &googleAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL},
		},
		profileURL:   googleProfile,
		tokenInfoURL: googleTokenInfo,
		revokeURL:    googleRevoke,
		refreshTTL:   int64(cfg.RefreshTokenTTL.Std().Seconds()),
		client:       &http.Client{Timeout: cfg.Timeout.Std()},
		logger:       l,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *googleAdapter) Code() string { return CodeGoogle }

func (g *googleAdapter) ExchangeCode(ctx context.Context, authCode string) (*TokenGrant, error) {
	tok, err := g.oauth.Exchange(g.oauthContext(ctx), authCode)
	if err != nil {
		g.logger.Error("Google code exchange failed", logger.Error(err))
		return nil, classify(err, ErrExchangeFailed)
	}
	grant := grantFromToken(tok, "", 0)
	if grant.RefreshTTL == 0 {
		grant.RefreshTTL = g.refreshTTL
	}
	return grant, nil
}

func (g *googleAdapter) FetchProfile(ctx context.Context, accessToken string) (*Identity, error) {
	var body struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, g.client, g.profileURL, accessToken, &body); err != nil {
		g.logger.Error("Google profile fetch failed", logger.Error(err))
		return nil, classify(err, ErrProfileFailed)
	}
	return &Identity{ProviderUserID: body.ID, Email: body.Email, Name: body.Name}, nil
}

// Refresh exchanges the refresh token for a new access token. Google does not
// rotate refresh tokens, so the stored token and its remaining lifetime come
// back in the grant unchanged.
func (g *googleAdapter) Refresh(ctx context.Context, refreshToken string, remainingTTL int64) (*TokenGrant, error) {
	src := g.oauth.TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		g.logger.Error("Google token refresh failed", logger.Error(err))
		return nil, classify(err, ErrRefreshFailed)
	}
	grant := grantFromToken(tok, refreshToken, remainingTTL)
	if grant.RefreshToken != refreshToken && grant.RefreshTTL == 0 {
		grant.RefreshTTL = remainingTTL
	}
	return grant, nil
}

func (g *googleAdapter) VerifyToken(ctx context.Context, accessToken string) (string, error) {
	var body struct {
		UserID string `json:"user_id"`
		Sub    string `json:"sub"`
	}
	verifyURL := g.tokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	if err := getJSON(ctx, g.client, verifyURL, "", &body); err != nil {
		g.logger.Error("Google token verification failed", logger.Error(err))
		return "", classify(err, ErrVerifyFailed)
	}
	if body.UserID != "" {
		return body.UserID, nil
	}
	return body.Sub, nil
}

func (g *googleAdapter) RevokeToken(ctx context.Context, rev Revocation) error {
	revoke := g.revokeURL + "?token=" + url.QueryEscape(rev.RefreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revoke, nil)
	if err != nil {
		return classify(err, ErrRevokeFailed)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return classify(err, ErrRevokeFailed)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: revoke returned status %d", ErrRevokeFailed, resp.StatusCode)
	}
	return nil
}

func (g *googleAdapter) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.client)
}
