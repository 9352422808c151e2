package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379" validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"roomchat_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"roomchat_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"roomchat_db"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"8005" validate:"min=1000,max=65535"`
	SessionSecret  string   `env:"SESSION_SECRET"   envDefault:"change-me-session-secret" validate:"min=16"`
	CORSAllow      []string `env:"CORS_ALLOW"       envDefault:"http://localhost:8005" envSeparator:","`

	// Wait between a room's deletion and the removeRoom announcement.
	TeardownGrace time.Duration `env:"ROOM_TEARDOWN_GRACE" envDefault:"2s" validate:"gte=0"`
	RoomCacheTTL  time.Duration `env:"ROOM_CACHE_TTL"      envDefault:"10m" validate:"gt=0"`

	ChatRatePerSec float64 `env:"CHAT_RATE_PER_SEC" envDefault:"5"  validate:"gt=0"`
	ChatRateBurst  int     `env:"CHAT_RATE_BURST"   envDefault:"10" validate:"min=1"`
	WsSendBuffer   int     `env:"WS_SEND_BUFFER"    envDefault:"64" validate:"min=1,max=4096"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	// Parse config from environment variables
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
