package member

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" //used for migrations
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" //postgres driver
	"github.com/trendflow/member/internal/config"
	"github.com/trendflow/member/internal/logger"
)

// PostgresResolver is the sqlx-backed Resolver over the members table.
type PostgresResolver struct {
	db  *sqlx.DB
	l   logger.Logger
	cfg config.DatabaseConfig
}

// NewPostgresResolver opens the members database connection.
func NewPostgresResolver(cfg config.DatabaseConfig, l logger.Logger) (*PostgresResolver, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open db connection: %v", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("could not establish db connection: %v", err)
	}

	return &PostgresResolver{db: db, l: l, cfg: cfg}, nil
}

func (r *PostgresResolver) Close() error {
	return r.db.Close()
}

func (r *PostgresResolver) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

// ResolveOrCreate looks the member up by provider identity first, then falls
// back to email so an existing account gets the new provider linked to it,
// and inserts a fresh row when neither matches.
func (r *PostgresResolver) ResolveOrCreate(ctx context.Context, providerCode, providerUserID, email, name string) (*Member, error) {
	byProvider := `
		SELECT id, name, email, provider_code, provider_user_id, refresh_token, created_at, updated_at
		FROM members
		WHERE provider_code = $1 AND provider_user_id = $2`

	m := &Member{}
	err := r.db.GetContext(ctx, m, byProvider, providerCode, providerUserID)
	if err == nil {
		return m, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get member by provider identity: %w", err)
	}

	// Account linking: same email seen through a different provider. The
	// subquery pins the update to a single row because email is not unique.
	if email != "" {
		link := `
			UPDATE members
			SET provider_code = $1, provider_user_id = $2, updated_at = NOW()
			WHERE id = (SELECT id FROM members WHERE email = $3 ORDER BY id LIMIT 1)
			RETURNING id, name, email, provider_code, provider_user_id, refresh_token, created_at, updated_at`

		err = r.db.GetContext(ctx, m, link, providerCode, providerUserID, email)
		if err == nil {
			r.l.Info("Member linked to provider",
				logger.Int64("member_id", m.ID),
				logger.String("provider", providerCode))
			return m, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to link member by email: %w", err)
		}
	}

	insert := `
		INSERT INTO members (name, email, provider_code, provider_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, provider_code, provider_user_id, refresh_token, created_at, updated_at`

	err = r.db.GetContext(ctx, m, insert, name, email, providerCode, providerUserID)
	if err != nil {
		r.l.Error("Failed to create member", logger.Error(err))
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	r.l.Info("Member created",
		logger.Int64("member_id", m.ID),
		logger.String("provider", providerCode))
	return m, nil
}

func (r *PostgresResolver) UpdateRefreshToken(ctx context.Context, memberID int64, refreshToken string) error {
	query := `
		UPDATE members
		SET refresh_token = $1, updated_at = NOW()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, refreshToken, memberID)
	if err != nil {
		r.l.Error("Failed to update member refresh token", logger.Error(err), logger.Int64("member_id", memberID))
		return fmt.Errorf("failed to update member refresh token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.l.Error("Failed to get rows affected after refresh token update", logger.Error(err))
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		r.l.Warn("Member not found for refresh token update", logger.Int64("member_id", memberID))
		return fmt.Errorf("member with id %d not found", memberID)
	}

	return nil
}
