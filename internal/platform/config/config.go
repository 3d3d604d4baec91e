package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type SessionsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	CookieName    string        `mapstructure:"cookie_name"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	SessionTokenTTL time.Duration `mapstructure:"session_token_ttl"`
}

type RateLimitConfig struct {
	ExportPerMinute        int `mapstructure:"export_per_minute"`
	APIWritePerMinute      int `mapstructure:"api_write_per_minute"`
	SessionCreatePerMinute int `mapstructure:"session_create_per_minute"`
}

type WebSocketConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadLimit      int64    `mapstructure:"read_limit"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("sessions.ttl", 30*time.Minute)
	v.SetDefault("sessions.max_sessions", 10000)
	v.SetDefault("sessions.sweep_interval", time.Minute)
	v.SetDefault("sessions.cookie_name", "qr_session")
	v.SetDefault("sessions.secure_cookie", false)

	v.SetDefault("jwt.session_token_ttl", 24*time.Hour)

	v.SetDefault("rate_limit.export_per_minute", 30)
	v.SetDefault("rate_limit.api_write_per_minute", 600)
	v.SetDefault("rate_limit.session_create_per_minute", 10)

	v.SetDefault("websocket.read_limit", 64*1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
