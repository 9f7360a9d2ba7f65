package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/sqlgen"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	c := Default()
	c.APIKey = "secret"
	c.Database.Engine = "sqlite"
	c.Database.Path = filepath.Join(t.TempDir(), "baas.db")
	c.Ledger.PathTemplate = filepath.Join(t.TempDir(), "BFlog", "%s.txt")
	return c
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.MaxAttempts != 3 || c.AttemptWindow != 24*time.Hour || c.QueryTimeout != 5*time.Second {
		t.Fatalf("defaults: %+v", c)
	}
	if c.Ledger.Backend != LedgerFile || c.Ledger.PathTemplate != "BFlog/%s.txt" {
		t.Fatalf("ledger defaults: %+v", c.Ledger)
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "baas.yaml")
	os.WriteFile(p, []byte(`
listen: ":9000"
api_key: "k"
attempt_window: 1h
database:
  engine: mysql
  host: db.internal
  name: app
  user: baas
  pass: pw
ledger:
  backend: redis
  redis_addr: "127.0.0.1:6379"
`), 0o644)

	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Listen != ":9000" || c.AttemptWindow != time.Hour || c.Database.Host != "db.internal" {
		t.Fatalf("loaded: %+v", c)
	}
	// Untouched keys keep their defaults.
	if c.MaxAttempts != 3 || c.Ledger.RedisPrefix == "" {
		t.Fatalf("defaults lost: %+v", c)
	}
	if c.Dialect() != sqlgen.MySQL {
		t.Fatalf("dialect: %v", c.Dialect())
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := Load("")
	if err != nil || c.Listen != ":8080" {
		t.Fatalf("got %+v, %v", c, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	p := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(p, []byte("listen: [unclosed"), 0o644)
	if _, err := Load(p); err == nil {
		t.Error("bad yaml accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	t.Setenv("BAAS_API_KEY", "from-env")
	t.Setenv("BAAS_DEBUG", "true")
	t.Setenv("BAAS_MAX_ATTEMPTS", "5")
	t.Setenv("BAAS_ATTEMPT_WINDOW", "90m")
	t.Setenv("BAAS_DB_ENGINE", "sqlite")
	t.Setenv("BAAS_LEDGER_BACKEND", "memory")

	if err := ApplyEnv(c); err != nil {
		t.Fatal(err)
	}
	if c.APIKey != "from-env" || !c.Debug || c.MaxAttempts != 5 || c.AttemptWindow != 90*time.Minute {
		t.Fatalf("env not applied: %+v", c)
	}
	if c.Database.Engine != "sqlite" || c.Ledger.Backend != LedgerMemory {
		t.Fatalf("nested env not applied: %+v", c)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	c := Default()
	t.Setenv("BAAS_MAX_ATTEMPTS", "three")
	t.Setenv("BAAS_LISTEN", ":7000")
	if err := ApplyEnv(c); err == nil {
		t.Fatal("bad int accepted")
	}
	if c.MaxAttempts != 3 {
		t.Fatalf("bad value overwrote default: %d", c.MaxAttempts)
	}
	if c.Listen != ":7000" {
		t.Fatal("valid variables not applied")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no engine", func(c *Config) { c.Database.Engine = "" }, "No database type is selected"},
		{"unknown engine", func(c *Config) { c.Database.Engine = "oracle" }, "Unknown database type"},
		{"sqlite no path", func(c *Config) { c.Database.Path = "" }, "No database path is entered"},
		{"mysql no host", func(c *Config) { c.Database.Engine = "mysql" }, "No database host is entered"},
		{"mysql no name", func(c *Config) {
			c.Database = Database{Engine: "mysql", Host: "h"}
		}, "No database name is entered"},
		{"mysql no user", func(c *Config) {
			c.Database = Database{Engine: "mysql", Host: "h", Name: "n"}
		}, "No database user is entered"},
		{"mysql no pass", func(c *Config) {
			c.Database = Database{Engine: "mysql", Host: "h", Name: "n", User: "u"}
		}, "No database password is entered"},
		{"no key", func(c *Config) { c.APIKey = "" }, "No API key is registered"},
		{"bad template", func(c *Config) { c.Ledger.PathTemplate = "BFlog/attempts.txt" }, "File path is not writeable"},
		{"redis no addr", func(c *Config) { c.Ledger.Backend = LedgerRedis }, "No ledger redis address is entered"},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "etcd" }, "Unknown ledger backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig(t)
			tt.mutate(c)
			err := c.Validate()
			if !fault.IsKind(err, fault.Configuration) {
				t.Fatalf("got %v, want a configuration error", err)
			}
			if got := fault.As(err).Message; got != tt.want {
				t.Fatalf("message: %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate_NoEngineFix(t *testing.T) {
	c := validConfig(t)
	c.Database.Engine = ""
	fe := fault.As(c.Validate())
	if fe.Fix != "Please select a database type!" {
		t.Fatalf("fix: %q", fe.Fix)
	}
	if fe.HTTPStatus() != 500 {
		t.Fatalf("status: %d", fe.HTTPStatus())
	}
}

func TestValidate_OK(t *testing.T) {
	c := validConfig(t)
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	c.Ledger.Backend = LedgerMemory
	c.APIKey = ""
	c.APIKeyBcrypt = "$2a$04$abcdefghijklmnopqrstuu"
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestEngineSettings(t *testing.T) {
	c := validConfig(t)
	c.Debug = true
	s := c.EngineSettings()
	if s.Dialect != sqlgen.SQLite || s.Path != c.Database.Path || !s.Trace || s.MaxConns != 256 || s.PingTimeout != 5*time.Second {
		t.Fatalf("settings: %+v", s)
	}
}
