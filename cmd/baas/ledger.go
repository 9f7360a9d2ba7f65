package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/baas/config"
	"github.com/hazyhaar/baas/dbopen"
	"github.com/hazyhaar/baas/ledger"
)

// openLedger builds the attempt store selected by cfg. The returned func
// releases it.
func openLedger(ctx context.Context, cfg *config.Config) (ledger.Store, func() error, error) {
	noop := func() error { return nil }
	lc := cfg.Ledger

	switch lc.Backend {
	case config.LedgerMemory:
		return ledger.NewMemoryStore(), noop, nil

	case config.LedgerSQLite:
		db, err := dbopen.Open(lc.SQLitePath, dbopen.WithMkdirAll(), dbopen.WithSchema(ledger.Schema))
		if err != nil {
			return nil, nil, fmt.Errorf("ledger sqlite: %w", err)
		}
		return ledger.NewSQLiteStore(db), db.Close, nil

	case config.LedgerRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: strings.Split(lc.RedisAddr, ","),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ledger redis %s: %w", lc.RedisAddr, err)
		}
		return ledger.NewRedisStore(rdb, lc.RedisPrefix, cfg.AttemptWindow), rdb.Close, nil

	default:
		fs, err := ledger.NewFileStore(lc.PathTemplate)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	}
}
