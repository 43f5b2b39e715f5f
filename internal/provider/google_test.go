package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendflow/member/internal/config"
)

func newGoogleForTest(t *testing.T, handler http.Handler, timeout time.Duration) Adapter {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := config.GoogleConfig{
		ClientID:        "client-id",
		ClientSecret:    "client-secret",
		Timeout:         config.Duration(timeout),
		RefreshTokenTTL: config.Duration(30 * 24 * time.Hour),
	}
	return NewGoogle(cfg, &mockLogger{},
		WithGoogleEndpoints(
			ts.URL+"/o/oauth2/auth",
			ts.URL+"/token",
			ts.URL+"/oauth2/v2/userinfo",
			ts.URL+"/tokeninfo",
			ts.URL+"/revoke",
		))
}

func TestGoogle_ExchangeCode_UsesConfiguredRefreshTTL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		// Google reports no refresh token lifetime
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token_type":    "Bearer",
			"access_token":  "GAT1",
			"expires_in":    3599,
			"refresh_token": "GRT1",
		})
	})

	g := newGoogleForTest(t, mux, time.Second)

	grant, err := g.ExchangeCode(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "GAT1", grant.AccessToken)
	assert.Equal(t, int64(3599), grant.AccessTTL)
	assert.Equal(t, "GRT1", grant.RefreshToken)
	assert.Equal(t, int64(30*24*3600), grant.RefreshTTL)
}

func TestGoogle_FetchProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer GAT1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":    "google-777",
			"email": "bob@example.com",
			"name":  "Bob",
		})
	})

	g := newGoogleForTest(t, mux, time.Second)

	id, err := g.FetchProfile(context.Background(), "GAT1")
	require.NoError(t, err)
	assert.Equal(t, "google-777", id.ProviderUserID)
	assert.Equal(t, "bob@example.com", id.Email)
	assert.Equal(t, "Bob", id.Name)
}

func TestGoogle_Refresh_NoRotation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "GRT1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		// No refresh_token in the response: Google does not rotate
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token_type":   "Bearer",
			"access_token": "GAT2",
			"expires_in":   3599,
		})
	})

	g := newGoogleForTest(t, mux, time.Second)

	grant, err := g.Refresh(context.Background(), "GRT1", 1400000)
	require.NoError(t, err)
	assert.Equal(t, "GAT2", grant.AccessToken)
	assert.Equal(t, "GRT1", grant.RefreshToken)
	assert.Equal(t, int64(1400000), grant.RefreshTTL)
}

func TestGoogle_Refresh_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})

	g := newGoogleForTest(t, mux, time.Second)

	_, err := g.Refresh(context.Background(), "GRT1", 1400000)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestGoogle_VerifyToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GAT1", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"user_id": "google-777",
			"email":   "bob@example.com",
		})
	})

	g := newGoogleForTest(t, mux, time.Second)

	id, err := g.VerifyToken(context.Background(), "GAT1")
	require.NoError(t, err)
	assert.Equal(t, "google-777", id)
}

func TestGoogle_VerifyToken_Invalid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
	})

	g := newGoogleForTest(t, mux, time.Second)

	_, err := g.VerifyToken(context.Background(), "GAT1")
	assert.ErrorIs(t, err, ErrVerifyFailed)
}

func TestGoogle_VerifyToken_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	g := newGoogleForTest(t, mux, 50*time.Millisecond)

	_, err := g.VerifyToken(context.Background(), "GAT1")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestGoogle_RevokeToken(t *testing.T) {
	var gotToken string
	mux := http.NewServeMux()
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		w.WriteHeader(http.StatusOK)
	})

	g := newGoogleForTest(t, mux, time.Second)

	err := g.RevokeToken(context.Background(), Revocation{ProviderUserID: "google-777", RefreshToken: "GRT1"})
	require.NoError(t, err)
	assert.Equal(t, "GRT1", gotToken)
}

func TestRegistry_Get(t *testing.T) {
	kakao := NewKakao(config.KakaoConfig{Timeout: config.Duration(time.Second)}, &mockLogger{})
	registry := NewRegistry(kakao)

	a, err := registry.Get(CodeKakao)
	require.NoError(t, err)
	assert.Equal(t, CodeKakao, a.Code())

	_, err = registry.Get("NAVER")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
