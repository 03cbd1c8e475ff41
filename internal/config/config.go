package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// AllowedOrigins applies to CORS and WebSocket upgrades. Empty allows all.
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Session struct {
		TTL           string `yaml:"ttl"`
		SweepInterval string `yaml:"sweep_interval"`
		RequireUUID   bool   `yaml:"require_uuid"`
	} `yaml:"session"`
	Sparql struct {
		Endpoint  string `yaml:"endpoint"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
		MaxOffset int    `yaml:"max_offset"`
		PageSize  int    `yaml:"page_size"`
	} `yaml:"sparql"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
	Generator struct {
		Fallback bool `yaml:"fallback"`
	} `yaml:"generator"`
	Templates struct {
		Path string `yaml:"path"`
	} `yaml:"templates"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields the environment-only configuration.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg with environment variables, loading .env first if present.
func ApplyEnv(cfg *Config) {
	_ = godotenv.Load()

	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Sparql.Endpoint, "SPARQL_ENDPOINT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Templates.Path, "TEMPLATES_PATH")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = parseOrigins(v)
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
