package library

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from BOOKSHARE_* environment variables; CLI flags override it.
type Config struct {
	BackendURL    string        `env:"BOOKSHARE_BACKEND_URL" envDefault:"http://localhost:5000/api/v1"`
	SessionDB     string        `env:"BOOKSHARE_SESSION_DB"`
	Ephemeral     bool          `env:"BOOKSHARE_EPHEMERAL"`
	LogLevel      string        `env:"BOOKSHARE_LOG_LEVEL" envDefault:"warn"`
	HTTPTimeout   time.Duration `env:"BOOKSHARE_HTTP_TIMEOUT" envDefault:"0s"`
	WatchInterval time.Duration `env:"BOOKSHARE_WATCH_INTERVAL" envDefault:"2s"`
}

// LoadConfig parses the environment and fills in the session database path.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionDB == "" {
		cfg.SessionDB = DefaultSessionDB()
	}
	if cfg.HTTPTimeout < 0 {
		return Config{}, fmt.Errorf("BOOKSHARE_HTTP_TIMEOUT must not be negative")
	}
	return cfg, nil
}

// DefaultSessionDB is session.db under the user's config directory, or the
// working directory when that cannot be determined.
func DefaultSessionDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bookshare-session.db"
	}
	return filepath.Join(dir, "bookshare", "session.db")
}
