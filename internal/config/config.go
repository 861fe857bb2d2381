// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultDatabase = "gestion_bdd"

type Config struct {
	Port string `mapstructure:"port"`

	// Document store
	MongoURI      string `mapstructure:"mongodb_uri"`
	MongoDatabase string `mapstructure:"mongodb_database"`

	// Relational store
	DBHost        string `mapstructure:"db_host"`
	DBPort        string `mapstructure:"db_port"`
	DBUser        string `mapstructure:"db_user"`
	DBPassword    string `mapstructure:"db_password"`
	DBName        string `mapstructure:"db_name"`
	DBMaxConns    int32  `mapstructure:"db_max_conns"`
	RunMigrations bool   `mapstructure:"run_migrations"`

	// Optional change events; publishing is disabled when empty.
	RabbitMQURL string `mapstructure:"rabbitmq_url"`

	CORSAllowOrigins []string      `mapstructure:"-"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel         string        `mapstructure:"log_level"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // not fatal if missing

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "3000")
	v.SetDefault("mongodb_uri", "mongodb://localhost:27017/"+defaultDatabase)
	v.SetDefault("mongodb_database", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", defaultDatabase)
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("run_migrations", false)
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("cors_allow_origins", "*")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("log_level", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSAllowOrigins = splitCSV(v.GetString("cors_allow_origins"))

	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = databaseFromURI(cfg.MongoURI)
	}
	if cfg.DBMaxConns <= 0 {
		cfg.DBMaxConns = 10
	}
	return cfg, nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// PostgresDSN builds a URL-encoded connection string for the relational store.
func (c Config) PostgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultDatabase
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
