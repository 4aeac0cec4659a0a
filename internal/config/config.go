package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

var ErrMissingSecret = errors.New("signing secret is not configured")

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	LogLevel     string        `mapstructure:"log_level"`
	Secret       string        `mapstructure:"secret"`
	TokenLeeway  time.Duration `mapstructure:"token_leeway"`
	PresenceMode string        `mapstructure:"presence_mode"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	Backpressure     string        `mapstructure:"backpressure"`
	JoinRateLimit    int           `mapstructure:"join_rate_limit"`
	JoinRateInterval time.Duration `mapstructure:"join_rate_interval"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`

	Users []domain.User `mapstructure:"users"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3001)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")
	v.SetDefault("token_leeway", "5s")
	v.SetDefault("presence_mode", "connection")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("backpressure", "drop")
	v.SetDefault("join_rate_limit", 20)
	v.SetDefault("join_rate_interval", "10s")
	v.SetDefault("allowed_origins", []string{"*"})
}

// Load reads config/config.<CONFIG_ENV>.yaml when present, then lets the
// environment override it. There is no fallback secret.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("secret", "JWT_SECRET", "SECRET"); err != nil {
		return nil, fmt.Errorf("bind secret env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("presence_mode", cfg.PresenceMode).
		Msg("config ready")
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return ErrMissingSecret
	}
	switch c.PresenceMode {
	case "connection", "identity":
	default:
		return fmt.Errorf("unknown presence_mode %q", c.PresenceMode)
	}
	switch c.Backpressure {
	case "drop", "kick":
	default:
		return fmt.Errorf("unknown backpressure policy %q", c.Backpressure)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive, got %s", c.PingPeriod)
	}
	if c.PongWait <= c.PingPeriod {
		return fmt.Errorf("pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("write_wait must be positive, got %s", c.WriteWait)
	}
	if c.JoinRateLimit <= 0 {
		return fmt.Errorf("join_rate_limit must be positive, got %d", c.JoinRateLimit)
	}
	if c.JoinRateInterval <= 0 {
		return fmt.Errorf("join_rate_interval must be positive, got %s", c.JoinRateInterval)
	}
	return nil
}
