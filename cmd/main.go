package main

import (
	"os"

	"github.com/trendflow/member/internal/cache"
	"github.com/trendflow/member/internal/config"
	"github.com/trendflow/member/internal/logger"
	"github.com/trendflow/member/internal/member"
	"github.com/trendflow/member/internal/provider"
	"github.com/trendflow/member/internal/session"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		os.Exit(1)
	}

	logger.Initialize(os.Stdout)
	l := logger.Global()
	defer l.Sync()

	redisCache, err := cache.NewRedisCache(cfg.Redis, l)
	if err != nil {
		l.Fatal("Failed to connect to Redis", logger.Error(err))
	}
	defer redisCache.Close()

	members, err := member.NewPostgresResolver(cfg.Database, l)
	if err != nil {
		l.Fatal("Failed to connect to members database", logger.Error(err))
	}
	defer members.Close()

	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		if err := members.RunMigrations(path); err != nil {
			l.Fatal("Failed to run migrations", logger.Error(err))
		}
	}

	var adapters []provider.Adapter
	if cfg.Providers.Kakao.ClientID != "" {
		adapters = append(adapters, provider.NewKakao(cfg.Providers.Kakao, l))
	}
	if cfg.Providers.Google.ClientID != "" {
		adapters = append(adapters, provider.NewGoogle(cfg.Providers.Google, l))
	}
	registry := provider.NewRegistry(adapters...)

	if _, err := session.NewManager(registry, members, session.NewTokenStore(redisCache), l); err != nil {
		l.Fatal("Failed to build session manager", logger.Error(err))
	}

	l.Info("Session manager ready", logger.Any("providers", registry.Codes()))
}
