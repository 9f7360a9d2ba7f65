// Package config holds the server registration state: database selection,
// the API key and the attempt-limiting policy.
//
// Values come from defaults, then an optional YAML file, then BAAS_*
// environment variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/baas/dbopen"
	"github.com/hazyhaar/baas/engine"
	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/ledger"
	"github.com/hazyhaar/baas/sqlgen"
)

// Config is the complete server configuration.
type Config struct {
	Listen        string        `yaml:"listen"`
	APIKey        string        `yaml:"api_key"`
	APIKeyBcrypt  string        `yaml:"api_key_bcrypt"`
	Debug         bool          `yaml:"debug"`
	TrustProxy    bool          `yaml:"trust_proxy"` // take the client address from X-Forwarded-For
	MaxAttempts   int           `yaml:"max_attempts"`
	AttemptWindow time.Duration `yaml:"attempt_window"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	MaxConns      int           `yaml:"max_conns"`
	Database      Database      `yaml:"database"`
	Ledger        Ledger        `yaml:"ledger"`
}

// Database selects the SQL engine.
type Database struct {
	Engine string `yaml:"engine"` // sqlite | mysql
	Path   string `yaml:"path"`   // sqlite
	Host   string `yaml:"host"`   // mysql
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	Trace  bool   `yaml:"trace"`
}

// Ledger selects where failed attempts are recorded.
type Ledger struct {
	Backend       string        `yaml:"backend"` // file | sqlite | memory | redis
	PathTemplate  string        `yaml:"path_template"`
	SQLitePath    string        `yaml:"sqlite_path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Ledger backends.
const (
	LedgerFile   = "file"
	LedgerSQLite = "sqlite"
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// Default returns the built-in configuration. No database engine is
// selected, so it does not validate on its own.
func Default() *Config {
	return &Config{
		Listen:        ":8080",
		MaxAttempts:   3,
		AttemptWindow: 24 * time.Hour,
		QueryTimeout:  5 * time.Second,
		MaxBodyBytes:  1 << 20,
		MaxConns:      256,
		Ledger: Ledger{
			Backend:       LedgerFile,
			PathTemplate:  ledger.DefaultPathTemplate,
			SQLitePath:    "BFlog/attempts.db",
			RedisPrefix:   ledger.DefaultRedisPrefix,
			SweepInterval: time.Minute,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration the way the server needs it before it
// can answer a request. The returned error is a *fault.Error of kind
// Configuration.
func (c *Config) Validate() error {
	d := c.Database
	if d.Engine == "" {
		return fault.Configf("No database type is selected").WithFix("Please select a database type!")
	}
	dialect, err := sqlgen.ParseDialect(d.Engine)
	if err != nil {
		return fault.Configf("Unknown database type").
			WithFix("Please select sqlite or mysql").
			With("Engine", d.Engine)
	}
	if dialect == sqlgen.MySQL {
		switch {
		case d.Host == "":
			return fault.Configf("No database host is entered").WithFix("Please select a valid database host")
		case d.Name == "":
			return fault.Configf("No database name is entered").WithFix("Please select a valid database name")
		case d.User == "":
			return fault.Configf("No database user is entered").WithFix("Please select a valid database user")
		case d.Pass == "":
			return fault.Configf("No database password is entered").WithFix("Please select a valid database password")
		}
	} else if d.Path == "" {
		return fault.Configf("No database path is entered").WithFix("Please select a valid database path")
	}

	if c.APIKey == "" && c.APIKeyBcrypt == "" {
		return fault.Configf("No API key is registered").WithFix("Please set api_key or api_key_bcrypt")
	}

	switch c.Ledger.Backend {
	case LedgerFile:
		fs, err := ledger.NewFileStore(c.Ledger.PathTemplate)
		if err != nil {
			return fault.Configf("File path is not writeable").With("FilePath", c.Ledger.PathTemplate)
		}
		if err := fs.CheckWritable(); err != nil {
			return fault.Configf("File path is not writeable").With("FilePath", fs.Dir())
		}
	case LedgerSQLite:
		if c.Ledger.SQLitePath == "" {
			return fault.Configf("No ledger database path is entered").WithFix("Please set ledger.sqlite_path")
		}
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			return fault.Configf("No ledger redis address is entered").WithFix("Please set ledger.redis_addr")
		}
	case LedgerMemory:
	default:
		return fault.Configf("Unknown ledger backend").
			WithFix("Please select file, sqlite, memory or redis").
			With("Backend", c.Ledger.Backend)
	}
	return nil
}

// Dialect returns the selected engine kind. Call after Validate.
func (c *Config) Dialect() sqlgen.Dialect {
	d, _ := sqlgen.ParseDialect(c.Database.Engine)
	return d
}

// EngineSettings describes the database for engine.Open. Tracing is on in
// debug mode and the connectivity check is bounded by the query timeout.
func (c *Config) EngineSettings() engine.Settings {
	return engine.Settings{
		Dialect: c.Dialect(),
		Path:    c.Database.Path,
		MySQL: dbopen.MySQL{
			Host: c.Database.Host,
			Name: c.Database.Name,
			User: c.Database.User,
			Pass: c.Database.Pass,
		},
		Trace:       c.Database.Trace || c.Debug,
		MaxConns:    c.MaxConns,
		PingTimeout: c.QueryTimeout,
	}
}
