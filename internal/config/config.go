package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev" validate:"oneof=dev prod"`

	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"3001" validate:"min=1000,max=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"  envDefault:"*"    envSeparator:","`

	// Liveness: the sweep pings every PingInterval, a connection silent for
	// PongWait is dropped.
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"30s" validate:"gt=0"`
	PongWait     time.Duration `env:"PONG_WAIT"     envDefault:"60s" validate:"gtfield=PingInterval"`
	WriteWait    time.Duration `env:"WRITE_WAIT"    envDefault:"10s" validate:"gt=0"`

	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE" envDefault:"65536" validate:"min=512"`
	SendBufferSize int   `env:"SEND_BUFFER_SIZE" envDefault:"256"   validate:"min=1"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

// LoadConfig reads the given dotenv files (".env" when none are given),
// then the process environment. Variables already set in the environment
// win over the files.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			zap.L().Debug("config.env_file_skipped", zap.String("file", f), zap.Error(err))
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

// IsProd reports whether the production logger and gin release mode apply.
func (c *Config) IsProd() bool { return c.AppEnv == "prod" }
