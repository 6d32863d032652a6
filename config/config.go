package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port          string `mapstructure:"port"`
		APIPrefix     string `mapstructure:"api_prefix"`
		AllowedOrigin string `mapstructure:"allowed_origin"`
		SecureCookies bool   `mapstructure:"secure_cookies"`
	} `mapstructure:"server"`
	Database struct {
		Host           string `mapstructure:"host"`
		Port           string `mapstructure:"port"`
		User           string `mapstructure:"user"`
		Password       string `mapstructure:"password"`
		Name           string `mapstructure:"name"`
		SSLMode        string `mapstructure:"sslmode"`
		MigrationsPath string `mapstructure:"migrations_path"`
	} `mapstructure:"database"`
	Redis struct {
		Host       string        `mapstructure:"host"`
		Port       string        `mapstructure:"port"`
		Password   string        `mapstructure:"password"`
		DB         int           `mapstructure:"db"`
		ProfileTTL time.Duration `mapstructure:"profile_ttl"`
	} `mapstructure:"redis"`
	JWT struct {
		SecretKey string        `mapstructure:"secret_key"`
		Issuer    string        `mapstructure:"issuer"`
		AccessTTL time.Duration `mapstructure:"access_ttl"`
	} `mapstructure:"jwt"`
	Auth struct {
		RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
		EphemeralTTL  time.Duration `mapstructure:"ephemeral_ttl"`
		OTPLength     int           `mapstructure:"otp_length"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
		Argon2        Argon2Config  `mapstructure:"argon2"`
	} `mapstructure:"auth"`
	Mail struct {
		Driver   string `mapstructure:"driver"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
		AppURL   string `mapstructure:"app_url"`
	} `mapstructure:"mail"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Argon2Config holds the cost parameters for new password digests.
type Argon2Config struct {
	Memory      uint32 `mapstructure:"memory"` // KiB
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.api_prefix", "/api/v1")
	v.SetDefault("server.allowed_origin", "http://localhost:5173")
	v.SetDefault("server.secure_cookies", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "file://db/migrations")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.profile_ttl", 10*time.Minute)

	v.SetDefault("jwt.issuer", "go-auth-api")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)

	v.SetDefault("auth.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("auth.ephemeral_ttl", 15*time.Minute)
	v.SetDefault("auth.otp_length", 8)
	v.SetDefault("auth.sweep_interval", time.Duration(0))
	v.SetDefault("auth.argon2.memory", 64*1024)
	v.SetDefault("auth.argon2.iterations", 3)
	v.SetDefault("auth.argon2.parallelism", 1)
	v.SetDefault("auth.argon2.key_length", 32)

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.app_url", "http://localhost:5173")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from path (if present) and overlays environment
// variables, e.g. JWT_SECRET_KEY overrides jwt.secret_key.
func LoadConfig(path string) error {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// AutomaticEnv only applies to keys viper already knows about, so bind the
	// ones that have no default explicitly.
	for _, key := range []string{
		"database.user", "database.password", "database.name",
		"redis.password", "jwt.secret_key",
		"mail.host", "mail.username", "mail.password", "mail.from",
	} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("unable to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return errors.New("jwt.secret_key must be set")
	}
	if c.Auth.OTPLength < 6 || c.Auth.OTPLength > 12 {
		return fmt.Errorf("auth.otp_length must be between 6 and 12, got %d", c.Auth.OTPLength)
	}
	if c.Mail.Driver != "smtp" && c.Mail.Driver != "log" {
		return fmt.Errorf("mail.driver must be smtp or log, got %q", c.Mail.Driver)
	}
	return nil
}
