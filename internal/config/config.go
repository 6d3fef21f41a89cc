package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisChatHost string `env:"REDIS_CHAT_HOST" envDefault:"localhost"`
	RedisChatPort uint16 `env:"REDIS_CHAT_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"ponto_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"ponto_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"ponto_db"`

	JwtSecret string `env:"JWT_SECRET" validate:"required"`

	AuthGracePeriod   time.Duration `env:"AUTH_GRACE_PERIOD"  envDefault:"30s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	TypingSweepEvery  time.Duration `env:"TYPING_SWEEP_EVERY" envDefault:"5s"`
	TypingStaleAfter  time.Duration `env:"TYPING_STALE_AFTER" envDefault:"3s"`
	MemberCacheTTL    time.Duration `env:"MEMBER_CACHE_TTL"   envDefault:"30s"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"2346" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
