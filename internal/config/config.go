package config

import (
	"sync"
)

var (
	globalConfig Config
	initOnce     sync.Once
)

type Config struct {
	Server    ServerConfig    `json:"server" envPrefix:"SERVER_" validate:"required"`
	Database  DatabaseConfig  `json:"database" envPrefix:"DB_" validate:"required"`
	Redis     RedisConfig     `json:"redis" envPrefix:"REDIS_" validate:"required"`
	Providers ProvidersConfig `json:"providers" envPrefix:"PROVIDER_" validate:"required"`
}

type ServerConfig struct {
	Port         string   `json:"port" env:"PORT" validate:"required,numeric"`
	Host         string   `json:"host" env:"HOST" validate:"required,hostname|ip"`
	ReadTimeout  Duration `json:"read_timeout" env:"READ_TIMEOUT" validate:"required,duration_gt0"`
	WriteTimeout Duration `json:"write_timeout" env:"WRITE_TIMEOUT" validate:"required,duration_gt0"`
}

type DatabaseConfig struct {
	Host     string `json:"host" env:"HOST" validate:"required,hostname|ip"`
	Port     string `json:"port" env:"PORT" validate:"required,numeric"`
	User     string `json:"user" env:"USER" validate:"required"`
	Password string `json:"password" env:"PASSWORD" validate:"required"`
	DBName   string `json:"db_name" env:"NAME" validate:"required"`
	SSLMode  string `json:"ssl_mode" env:"SSL_MODE" validate:"required,oneof=disable require verify-ca verify-full"`
}

type RedisConfig struct {
	Addr     string `json:"addr" env:"REDIS_ADDR" validate:"required,hostname_port"`
	Password string `json:"password" env:"REDIS_PASSWORD" validate:"omitempty"`
	DB       int    `json:"db" env:"REDIS_DB" validate:"gte=0"`
}

// ProvidersConfig carries credentials for every identity provider the service
// can log members in through. A provider with an empty client id is treated as
// disabled and is not registered at startup.
type ProvidersConfig struct {
	Kakao  KakaoConfig  `json:"kakao" envPrefix:"KAKAO_"`
	Google GoogleConfig `json:"google" envPrefix:"GOOGLE_"`
}

type KakaoConfig struct {
	ClientID     string   `json:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `json:"client_secret" env:"CLIENT_SECRET"`
	RedirectURL  string   `json:"redirect_url" env:"REDIRECT_URL" validate:"omitempty,url"`
	AdminKey     string   `json:"admin_key" env:"ADMIN_KEY"`
	Timeout      Duration `json:"timeout" env:"TIMEOUT" validate:"required,duration_gt0"`
}

type GoogleConfig struct {
	ClientID     string   `json:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `json:"client_secret" env:"CLIENT_SECRET"`
	RedirectURL  string   `json:"redirect_url" env:"REDIRECT_URL" validate:"omitempty,url"`
	Timeout      Duration `json:"timeout" env:"TIMEOUT" validate:"required,duration_gt0"`
	// Google's token endpoint does not report a refresh token lifetime, so
	// sessions opened through Google are bounded by this value instead.
	RefreshTokenTTL Duration `json:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" validate:"required,duration_gt0"`
}
