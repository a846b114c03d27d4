package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("auth.hmac_secret must be set in production")

const devSecret = "quizdesk-dev-secret"

type Config struct {
	Env       string `mapstructure:"env"` // local, dev, production
	HTTPAddr  string `mapstructure:"http_addr"`
	PublicURL string `mapstructure:"public_url"`
	SiteID    string `mapstructure:"site_id"`

	DB   DB   `mapstructure:"db"`
	Auth Auth `mapstructure:"auth"`
	CORS CORS `mapstructure:"cors"`
	Log  Log  `mapstructure:"log"`
}

type DB struct {
	Driver string `mapstructure:"driver"` // sqlite|postgres
	DSN    string `mapstructure:"dsn"`
}

type Auth struct {
	HMACSecret string        `mapstructure:"hmac_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Log struct {
	Level string `mapstructure:"level"` // debug|info|warn|error, empty keeps the env default
}

func (c Config) Production() bool { return c.Env == "production" }

// Load reads .env (if present), an optional config.yaml and the environment.
// Environment variables use upper case with "_" for nesting, e.g. DB_DRIVER.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("env", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("public_url", "")
	v.SetDefault("site_id", "local")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")
	v.SetDefault("auth.hmac_secret", "")
	v.SetDefault("auth.token_ttl", "8h")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("log.level", "")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	// drop blanks left by "a, b" style lists
	cfg.CORS.AllowedOrigins = splitCSV(cfg.CORS.AllowedOrigins)

	if cfg.Auth.HMACSecret == "" {
		if cfg.Production() {
			return nil, ErrMissingSecret
		}
		cfg.Auth.HMACSecret = devSecret
	}
	switch cfg.DB.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported db.driver %q", cfg.DB.Driver)
	}
	return &cfg, nil
}

func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
