package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "RPS"

type Database struct {
	Driver     string
	URL        string
	Host       string
	Port       int
	Name       string
	Username   string
	Password   string
	Schema     string
	SQLitePath string
}

type Config struct {
	Bind      string
	Port      int
	PublicURL string

	DB Database

	NextRoundDelay  time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	QRSize int
}

func Default() *Config {
	return &Config{
		Bind: "0.0.0.0",
		Port: 3000,
		DB: Database{
			Driver:     "sqlite",
			Host:       "localhost",
			Port:       5432,
			Name:       "rps",
			Username:   "rps",
			Schema:     "public",
			SQLitePath: "rps.db",
		},
		NextRoundDelay:  100 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
		QRSize:          256,
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.DB.Driver {
	case "postgres":
		if c.DB.URL == "" && (c.DB.Host == "" || c.DB.Name == "") {
			return errors.New("postgres driver needs --db-url or --db-host and --db-database")
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return errors.New("sqlite driver needs --sqlite-path")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q (want postgres, sqlite or memory)", c.DB.Driver)
	}
	if c.NextRoundDelay < 0 {
		return fmt.Errorf("next round delay must not be negative: %s", c.NextRoundDelay)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %s", c.ShutdownTimeout)
	}
	if c.QRSize < 64 || c.QRSize > 2048 {
		return fmt.Errorf("invalid qr size (must be between 64-2048 inclusive): %d", c.QRSize)
	}
	if c.PublicURL != "" && !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public url must start with http:// or https://: %s", c.PublicURL)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// RegisterFlags binds every option to fs, using the values already in c as defaults.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", c.Bind, "address to bind to (env: RPS_BIND)")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on (env: RPS_PORT)")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "base url used in share links, derived from the request when empty (env: RPS_PUBLIC_URL)")

	fs.StringVar(&c.DB.Driver, "db-driver", c.DB.Driver, "room directory backend: postgres, sqlite or memory (env: RPS_DB_DRIVER)")
	fs.StringVar(&c.DB.URL, "db-url", c.DB.URL, "postgres connection url, overrides the other db-* options (env: RPS_DB_URL)")
	fs.StringVar(&c.DB.Host, "db-host", c.DB.Host, "postgres host (env: RPS_DB_HOST)")
	fs.IntVar(&c.DB.Port, "db-port", c.DB.Port, "postgres port (env: RPS_DB_PORT)")
	fs.StringVar(&c.DB.Name, "db-database", c.DB.Name, "postgres database (env: RPS_DB_DATABASE)")
	fs.StringVar(&c.DB.Username, "db-username", c.DB.Username, "postgres user (env: RPS_DB_USERNAME)")
	fs.StringVar(&c.DB.Password, "db-password", c.DB.Password, "postgres password (env: RPS_DB_PASSWORD)")
	fs.StringVar(&c.DB.Schema, "db-schema", c.DB.Schema, "postgres search_path (env: RPS_DB_SCHEMA)")
	fs.StringVar(&c.DB.SQLitePath, "sqlite-path", c.DB.SQLitePath, "sqlite database file (env: RPS_SQLITE_PATH)")

	fs.DurationVar(&c.NextRoundDelay, "next-round-delay", c.NextRoundDelay, "pause between a round result and the next prompt (env: RPS_NEXT_ROUND_DELAY)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "time allowed for a graceful shutdown (env: RPS_SHUTDOWN_TIMEOUT)")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error (env: RPS_LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "console or json (env: RPS_LOG_FORMAT)")

	fs.IntVar(&c.QRSize, "qr-size", c.QRSize, "edge length of share QR codes in pixels (env: RPS_QR_SIZE)")
}

// BindEnv copies RPS_* environment values into every flag the user did not set.
func BindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}
