package member

import (
	"context"
	"time"
)

// Member is the durable profile record a federated identity resolves to.
type Member struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	ProviderCode   string    `db:"provider_code" json:"provider_code"`
	ProviderUserID string    `db:"provider_user_id" json:"provider_user_id"`
	RefreshToken   string    `db:"refresh_token" json:"refresh_token"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Resolver maps a federated identity to a local member, creating one on first
// sight, and keeps the member's last known refresh token current.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, providerCode, providerUserID, email, name string) (*Member, error)
	UpdateRefreshToken(ctx context.Context, memberID int64, refreshToken string) error
}
