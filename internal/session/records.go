package session

import "time"

// RefreshSession is the one record per active login chain, keyed by the
// refresh token. The key changes on every successful refresh; the old key's
// record is superseded, never reused.
type RefreshSession struct {
	RefreshToken     string    `json:"refresh_token"`
	RefreshTTL       int64     `json:"refresh_token_expire"`
	RefreshExpiresAt time.Time `json:"refresh_expire"`
	AccessToken      string    `json:"access_token"`
	AccessTTL        int64     `json:"access_token_expire"`
	AccessExpiresAt  time.Time `json:"access_expire"`
	MemberID         int64     `json:"member_id"`
	ProviderCode     string    `json:"provider_code"`
	ProviderUserID   string    `json:"provider_user_id"`
}

// AccessTokenRecord is one record per issued access token. Superseded and
// logged-out records are kept with Valid=false until their own TTL elapses;
// validity is only ever flipped, never deleted early.
type AccessTokenRecord struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expire"`
	RefreshToken    string    `json:"refresh_token"`
	MemberID        int64     `json:"member_id"`
	ProviderCode    string    `json:"provider_code"`
	ProviderUserID  string    `json:"provider_user_id"`
	Valid           bool      `json:"is_valid"`
}

// LoginResult is what a successful login hands back to the transport layer.
type LoginResult struct {
	Name         string `json:"name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is the rotated pair a successful refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
