package engine

import (
	"database/sql/driver"
	"strconv"
	"strings"
	"sync"

	"modernc.org/sqlite"

	"github.com/hazyhaar/baas/sqlgen"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterFunctions registers DISTANCE(lat1, lon1, lat2, lon2) with the
// SQLite driver. Only connections opened afterwards see it. Safe to call
// more than once.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("DISTANCE", 4, distanceFunc)
	})
	return registerErr
}

// distanceFunc returns NULL when any argument is not a number, so rows with
// missing coordinates never match a radius predicate.
func distanceFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var f [4]float64
	for i, a := range args {
		v, ok := toFloat(a)
		if !ok {
			return nil, nil
		}
		f[i] = v
	}
	return sqlgen.Distance(f[0], f[1], f[2], f[3]), nil
}

func toFloat(v driver.Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
