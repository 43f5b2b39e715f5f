package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trendflow/member/internal/config"
	"github.com/trendflow/member/internal/logger"
	"golang.org/x/oauth2"
)

const (
	kakaoAuthURL  = "https://kauth.kakao.com/oauth/authorize"
	kakaoTokenURL = "https://kauth.kakao.com/oauth/token"
	kakaoAPIURL   = "https://kapi.kakao.com"
)

type kakaoAdapter struct {
	oauth    *oauth2.Config
	apiURL   string
	adminKey string
	client   *http.Client
	logger   logger.Logger
}

// KakaoOption overrides adapter defaults, primarily for tests.
type KakaoOption func(*kakaoAdapter)

// WithKakaoEndpoints points the adapter at alternative auth/token/api URLs.
func WithKakaoEndpoints(authURL, tokenURL, apiURL string) KakaoOption {
	return func(k *kakaoAdapter) {
		k.oauth.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		k.apiURL = apiURL
	}
}

// NewKakao creates the Kakao adapter from config.
func NewKakao(cfg config.KakaoConfig, l logger.Logger, opts ...KakaoOption) Adapter {
	k := &kakaoAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oauth2.Endpoint{AuthURL: kakaoAuthURL, TokenURL: kakaoTokenURL},
		},
		apiURL:   kakaoAPIURL,
		adminKey: cfg.AdminKey,
		client:   &http.Client{Timeout: cfg.Timeout.Std()},
		logger:   l,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *kakaoAdapter) Code() string { return CodeKakao }

func (k *kakaoAdapter) ExchangeCode(ctx context.Context, authCode string) (*TokenGrant, error) {
	tok, err := k.oauth.Exchange(k.oauthContext(ctx), authCode)
	if err != nil {
		k.logger.Error("Kakao code exchange failed", logger.Error(err))
		return nil, classify(err, ErrExchangeFailed)
	}
	return grantFromToken(tok, "", 0), nil
}

func (k *kakaoAdapter) FetchProfile(ctx context.Context, accessToken string) (*Identity, error) {
	var body struct {
		ID         json.Number `json:"id"`
		Properties struct {
			Nickname string `json:"nickname"`
		} `json:"properties"`
		KakaoAccount struct {
			Email string `json:"email"`
		} `json:"kakao_account"`
	}
	if err := k.getJSON(ctx, k.apiURL+"/v2/user/me", accessToken, &body); err != nil {
		k.logger.Error("Kakao profile fetch failed", logger.Error(err))
		return nil, classify(err, ErrProfileFailed)
	}
	return &Identity{
		ProviderUserID: body.ID.String(),
		Email:          body.KakaoAccount.Email,
		Name:           body.Properties.Nickname,
	}, nil
}

func (k *kakaoAdapter) Refresh(ctx context.Context, refreshToken string, remainingTTL int64) (*TokenGrant, error) {
	src := k.oauth.TokenSource(k.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		k.logger.Error("Kakao token refresh failed", logger.Error(err))
		return nil, classify(err, ErrRefreshFailed)
	}
	return grantFromToken(tok, refreshToken, remainingTTL), nil
}

func (k *kakaoAdapter) VerifyToken(ctx context.Context, accessToken string) (string, error) {
	var body struct {
		ID json.Number `json:"id"`
	}
	if err := k.getJSON(ctx, k.apiURL+"/v1/user/access_token_info", accessToken, &body); err != nil {
		k.logger.Error("Kakao token verification failed", logger.Error(err))
		return "", classify(err, ErrVerifyFailed)
	}
	return body.ID.String(), nil
}

// RevokeToken unlinks the member's Kakao session by provider user id, using
// the application admin key.
func (k *kakaoAdapter) RevokeToken(ctx context.Context, rev Revocation) error {
	form := url.Values{
		"target_id_type": {"user_id"},
		"target_id":      {rev.ProviderUserID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.apiURL+"/v1/user/unlink", strings.NewReader(form.Encode()))
	if err != nil {
		return classify(err, ErrRevokeFailed)
	}
	req.Header.Set("Authorization", "KakaoAK "+k.adminKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.client.Do(req)
	if err != nil {
		return classify(err, ErrRevokeFailed)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unlink returned status %d", ErrRevokeFailed, resp.StatusCode)
	}
	return nil
}

func (k *kakaoAdapter) getJSON(ctx context.Context, rawURL, accessToken string, out interface{}) error {
	return getJSON(ctx, k.client, rawURL, accessToken, out)
}

// oauthContext routes the oauth2 package's HTTP calls through the adapter's
// timeout-bounded client.
func (k *kakaoAdapter) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, k.client)
}

// grantFromToken converts an oauth2 token into a TokenGrant, reading the
// provider-side lifetimes from the raw response extras. When the provider did
// not rotate the refresh token, fallbackRefresh/fallbackTTL (the stored token
// and its remaining lifetime) are reported instead.
func grantFromToken(tok *oauth2.Token, fallbackRefresh string, fallbackTTL int64) *TokenGrant {
	grant := &TokenGrant{
		AccessToken:  tok.AccessToken,
		AccessTTL:    extraSeconds(tok, "expires_in"),
		RefreshToken: tok.RefreshToken,
		RefreshTTL:   extraSeconds(tok, "refresh_token_expires_in"),
	}
	if grant.AccessTTL == 0 && !tok.Expiry.IsZero() {
		grant.AccessTTL = int64(time.Until(tok.Expiry).Seconds())
	}
	if grant.RefreshToken == "" {
		grant.RefreshToken = fallbackRefresh
	}
	// The oauth2 package backfills an omitted refresh_token with the one
	// from the request, so "unchanged token" also means "no fresh TTL".
	if grant.RefreshToken == fallbackRefresh && grant.RefreshTTL == 0 {
		grant.RefreshTTL = fallbackTTL
	}
	return grant
}

func extraSeconds(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
