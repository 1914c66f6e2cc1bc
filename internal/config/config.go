// Package config loads application configuration from environment
// variables.  Each concern (AI provider, credits, rate limiting, caching,
// events) has its own loader so components only receive what they use.
package config

import (
    "fmt"
    "os"
    "strings"
)

// Config holds the core runtime settings of the HTTP service.
type Config struct {
    Env           string   // application environment (dev, test, prod)
    Port          string   // HTTP port to listen on
    LogLevel      string   // zerolog level name
    DBDriver      string   // "mysql" or "sqlite"
    DBUser        string   // mysql user
    DBPass        string   // mysql password (may be empty)
    DBHost        string   // mysql host
    DBPort        string   // mysql port
    DBName        string   // mysql database name
    DBPath        string   // sqlite file path
    SessionSecret string   // HS256 key used to verify session tokens
    CORSOrigins   []string // allowed browser origins; empty disables CORS
}

// Load reads the core configuration.  SESSION_SECRET is always required;
// the mysql connection variables are required only when DB_DRIVER is mysql.
func Load() (Config, error) {
    cfg := Config{
        Env:           envStr("APP_ENV", "dev"),
        Port:          envStr("APP_PORT", "3000"),
        LogLevel:      envStr("LOG_LEVEL", "info"),
        DBDriver:      strings.ToLower(envStr("DB_DRIVER", "mysql")),
        DBUser:        os.Getenv("DB_USER"),
        DBPass:        os.Getenv("DB_PASS"),
        DBHost:        envStr("DB_HOST", "127.0.0.1"),
        DBPort:        envStr("DB_PORT", "3306"),
        DBName:        os.Getenv("DB_NAME"),
        DBPath:        envStr("DB_PATH", "aether.db"),
        SessionSecret: os.Getenv("SESSION_SECRET"),
        CORSOrigins:   envList("CORS_ORIGINS"),
    }
    if cfg.SessionSecret == "" {
        return Config{}, fmt.Errorf("missing required env var: SESSION_SECRET")
    }
    switch cfg.DBDriver {
    case "mysql":
        if cfg.DBUser == "" || cfg.DBName == "" {
            return Config{}, fmt.Errorf("DB_USER and DB_NAME are required for the mysql driver")
        }
    case "sqlite":
    default:
        return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
    }
    return cfg, nil
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "development" }
