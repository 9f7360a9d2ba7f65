package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides c with the BAAS_* variables that are set and not
// empty. A variable that does not parse is an error; the rest are still
// applied.
func ApplyEnv(c *Config) error {
	var e envReader
	e.str("BAAS_LISTEN", &c.Listen)
	e.str("BAAS_API_KEY", &c.APIKey)
	e.str("BAAS_API_KEY_BCRYPT", &c.APIKeyBcrypt)
	e.bool("BAAS_DEBUG", &c.Debug)
	e.bool("BAAS_TRUST_PROXY", &c.TrustProxy)
	e.int("BAAS_MAX_ATTEMPTS", &c.MaxAttempts)
	e.duration("BAAS_ATTEMPT_WINDOW", &c.AttemptWindow)
	e.duration("BAAS_QUERY_TIMEOUT", &c.QueryTimeout)
	e.int64("BAAS_MAX_BODY_BYTES", &c.MaxBodyBytes)
	e.int("BAAS_MAX_CONNS", &c.MaxConns)

	e.str("BAAS_DB_ENGINE", &c.Database.Engine)
	e.str("BAAS_DB_PATH", &c.Database.Path)
	e.str("BAAS_DB_HOST", &c.Database.Host)
	e.str("BAAS_DB_NAME", &c.Database.Name)
	e.str("BAAS_DB_USER", &c.Database.User)
	e.str("BAAS_DB_PASS", &c.Database.Pass)
	e.bool("BAAS_DB_TRACE", &c.Database.Trace)

	e.str("BAAS_LEDGER_BACKEND", &c.Ledger.Backend)
	e.str("BAAS_LEDGER_PATH_TEMPLATE", &c.Ledger.PathTemplate)
	e.str("BAAS_LEDGER_SQLITE_PATH", &c.Ledger.SQLitePath)
	e.str("BAAS_LEDGER_REDIS_ADDR", &c.Ledger.RedisAddr)
	e.str("BAAS_LEDGER_REDIS_PREFIX", &c.Ledger.RedisPrefix)
	e.duration("BAAS_LEDGER_SWEEP_INTERVAL", &c.Ledger.SweepInterval)
	return e.err
}

func lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

type envReader struct {
	err error
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) int(key string, dst *int) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) int64(key string, dst *int64) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}
