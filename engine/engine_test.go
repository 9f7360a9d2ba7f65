package engine

import (
	"context"
	"database/sql/driver"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/baas/dbopen"
	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/sqlgen"
	"github.com/hazyhaar/baas/trace"
)

const testSchema = `
CREATE TABLE users (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL,
	email TEXT NOT NULL
);
CREATE TABLE shops (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT,
	latitude  REAL,
	longitude REAL
);
INSERT INTO users (name, email) VALUES ('alice', 'a@example.com'), ('bob', 'b@example.com'), ('carol', 'c@example.com');
INSERT INTO shops (name, latitude, longitude) VALUES
	('amsterdam', 52.3676, 4.9041),
	('haarlem',   52.3874, 4.6462),
	('rotterdam', 51.9244, 4.4777),
	('nowhere',   NULL,    NULL);
`

func newTestEngine(t *testing.T, opts ...dbopen.Option) *Engine {
	t.Helper()
	if err := RegisterFunctions(); err != nil {
		t.Fatal(err)
	}
	db := dbopen.OpenMemory(t, append(opts, dbopen.WithSchema(testSchema))...)
	return New(db, sqlgen.SQLite, 2*time.Second)
}

func TestTableFromSQL(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM users WHERE id = 1", "users"},
		{"select * from `orders`", "orders"},
		{"INSERT INTO log_entries (a) VALUES (1)", "log_entries"},
		{"DROP TABLE tmp2", "tmp2"},
		{"UPDATE users SET a = 1", NoTable},
		{"SELECT 1", NoTable},
		{"DELETE FROM a; SELECT * FROM b", "a"},
	}
	for _, tt := range tests {
		if got := TableFromSQL(tt.sql); got != tt.want {
			t.Errorf("TableFromSQL(%q) = %q, want %q", tt.sql, got, tt.want)
		}
	}
}

func TestExists(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, tt := range []struct {
		table string
		want  bool
	}{
		{"users", true},
		{" users ", true},
		{"missing", false},
		{NoTable, false},
		{"", false},
		{"users'; DROP TABLE users; --", false},
	} {
		got, err := e.Exists(ctx, tt.table)
		if err != nil {
			t.Fatalf("Exists(%q): %v", tt.table, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.table, got, tt.want)
		}
	}
	// The injection attempt above must not have touched the table.
	if ok, _ := e.Exists(ctx, "users"); !ok {
		t.Fatal("users table disappeared")
	}
}

func TestExists_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for _, table := range []string{"users", "missing"} {
		a, err1 := e.Exists(ctx, table)
		b, err2 := e.Exists(ctx, table)
		if err1 != nil || err2 != nil || a != b {
			t.Fatalf("%s: %v/%v %v/%v", table, a, err1, b, err2)
		}
	}
}

func TestExistsQuery_MySQL(t *testing.T) {
	q := ExistsQuery(sqlgen.MySQL)
	if !strings.Contains(q, "information_schema.tables") || !strings.HasSuffix(q, "table_name = ?") {
		t.Fatalf("mysql query: %s", q)
	}
	if !strings.Contains(ExistsQuery(sqlgen.SQLite), "`type` = 'table'") {
		t.Fatal("sqlite query must filter on type")
	}
}

func TestColumns(t *testing.T) {
	e := newTestEngine(t)
	cols, err := e.Columns(context.Background(), "users")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"id", "name", "email"}
	if strings.Join(cols, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", cols, want)
	}
}

func TestQuery_Equals(t *testing.T) {
	e := newTestEngine(t)
	c := e.Compiler()
	where, err := c.CompileWhere([]sqlgen.Triple{{Left: "name", Op: sqlgen.Equals, Right: "alice"}})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := e.Query(context.Background(), c.Select("users", where, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}
	if v, _ := rows[0].Get("email"); v != "a@example.com" {
		t.Fatalf("email: got %v", v)
	}
}

func TestQuery_RetriesPositionallyOnSmallResult(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	trace.SetObserver(func(en trace.Entry) {
		if strings.Contains(en.Query, "users") {
			mu.Lock()
			seen = append(seen, en.Query)
			mu.Unlock()
		}
	})
	defer trace.SetObserver(nil)

	e := newTestEngine(t, dbopen.WithTrace())
	c := sqlgen.NewCompiler(sqlgen.SQLite, nil)
	where, _ := c.CompileWhere([]sqlgen.Triple{{Left: "name", Op: sqlgen.Equals, Right: "bob"}})
	stmt := c.Select("users", where, nil)

	rows, err := e.Query(context.Background(), stmt)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows=%d err=%v", len(rows), err)
	}

	mu.Lock()
	defer mu.Unlock()
	var named, positional bool
	for _, q := range seen {
		if strings.Contains(q, "= :x") {
			named = true
		}
		if strings.Contains(q, "= ?") {
			positional = true
		}
	}
	if !named || !positional {
		t.Fatalf("expected named then positional execution, saw %q", seen)
	}
}

func TestQuery_ManyRowsSkipsRetry(t *testing.T) {
	var mu sync.Mutex
	positional := 0
	trace.SetObserver(func(en trace.Entry) {
		if strings.HasPrefix(en.Query, "SELECT * FROM `users`") && strings.Contains(en.Query, "?") {
			mu.Lock()
			positional++
			mu.Unlock()
		}
	})
	defer trace.SetObserver(nil)

	e := newTestEngine(t, dbopen.WithTrace())
	c := e.Compiler()
	where, _ := c.CompileWhere([]sqlgen.Triple{{Left: "email", Op: sqlgen.Like, Right: "%@example.com"}})
	rows, err := e.Query(context.Background(), c.Select("users", where, nil))
	if err != nil || len(rows) != 3 {
		t.Fatalf("rows=%d err=%v", len(rows), err)
	}
	mu.Lock()
	defer mu.Unlock()
	if positional != 0 {
		t.Fatalf("positional retries: %d, want 0", positional)
	}
}

func TestQuery_Location(t *testing.T) {
	e := newTestEngine(t)
	c := e.Compiler()
	where, err := c.CompileWhere([]sqlgen.Triple{{Left: "52.37,4.89", Op: sqlgen.Location, Tag: "location", Right: "30"}})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := e.Query(context.Background(), c.Select("shops", where, nil))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range rows {
		v, _ := r.Get("name")
		names = append(names, v.(string))
	}
	// Haarlem is ~17km away, Rotterdam ~50km, "nowhere" has no coordinates.
	if strings.Join(names, ",") != "amsterdam,haarlem" {
		t.Fatalf("got %v", names)
	}
}

func TestQuery_LimitAndEmpty(t *testing.T) {
	e := newTestEngine(t)
	c := e.Compiler()
	n := int64(2)
	rows, err := e.Query(context.Background(), c.Select("users", sqlgen.Fragment{}, &n))
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows=%d err=%v", len(rows), err)
	}

	where, _ := c.CompileWhere([]sqlgen.Triple{{Left: "name", Op: sqlgen.Equals, Right: "nobody"}})
	rows, err = e.Query(context.Background(), c.Select("users", where, nil))
	if err != nil {
		t.Fatal(err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestQuery_DriverError(t *testing.T) {
	e := newTestEngine(t)
	c := e.Compiler()
	where, _ := c.CompileWhere([]sqlgen.Triple{{Left: "no_such_column", Op: sqlgen.Equals, Right: "x"}})
	_, err := e.Query(context.Background(), c.Select("users", where, nil))
	fe := fault.As(err)
	if fe == nil || fe.Kind != fault.Driver {
		t.Fatalf("expected driver fault, got %v", err)
	}
	if !strings.Contains(fe.Exception, "no_such_column") {
		t.Errorf("exception: %q", fe.Exception)
	}
	if !strings.Contains(fe.Debug, "SELECT * FROM `users`") {
		t.Errorf("debug: %q", fe.Debug)
	}
}

func TestExec_InsertUpdateDelete(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c := e.Compiler()

	res, err := e.Exec(ctx, c.Insert("users", []string{"id", "name", "email"},
		map[string]string{"name": "dave", "email": "d@example.com"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.LastInsertID != 4 {
		t.Fatalf("LastInsertID = %d, want 4", res.LastInsertID)
	}

	c = e.Compiler()
	set, _ := c.CompileSet([]sqlgen.Pair{{Field: "email", Value: "dave@example.com"}})
	where, _ := c.CompileWhere([]sqlgen.Triple{{Left: "name", Op: sqlgen.Equals, Right: "dave"}})
	res, err = e.Exec(ctx, c.Update("users", set, where))
	if err != nil || res.RowsAffected != 1 {
		t.Fatalf("update: %+v %v", res, err)
	}

	c = e.Compiler()
	where, _ = c.CompileWhere([]sqlgen.Triple{{Left: "name", Op: sqlgen.NotEquals, Right: "alice"}})
	res, err = e.Exec(ctx, c.Delete("users", where))
	if err != nil || res.RowsAffected != 3 {
		t.Fatalf("delete: %+v %v", res, err)
	}
}

func TestExecute(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	rows, err := e.Execute(ctx, "SELECT name FROM users WHERE email = :mail", map[string]string{":mail": "c@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: %d", len(rows))
	}
	if v, _ := rows[0].Get("name"); v != "carol" {
		t.Fatalf("name: %v", v)
	}

	_, err = e.Execute(ctx, "SELECT * FROM ghosts", nil)
	fe := fault.As(err)
	if fe == nil || fe.Kind != fault.NotFound || fe.Message != `Table "ghosts" does not exists` {
		t.Fatalf("got %v", err)
	}
	if fe.Envelope(false)["Table"] != "ghosts" {
		t.Fatalf("envelope: %v", fe.Envelope(false))
	}
}

func TestExecute_MutationRunsOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	rows, err := e.Execute(ctx, "INSERT INTO users (name, email) VALUES (:n, :m)",
		map[string]string{"n": "dave", ":m": "d@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: %d", len(rows))
	}
	if v, _ := rows[0].Get("RowsAffected"); v != int64(1) {
		t.Fatalf("RowsAffected: %v", v)
	}
	if v, _ := rows[0].Get("LastInsertID"); v != int64(4) {
		t.Fatalf("LastInsertID: %v", v)
	}

	got, err := e.Execute(ctx, "SELECT count(*) AS n FROM users WHERE name = :name", map[string]string{"name": "dave"})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got[0].Get("n"); v != int64(1) {
		t.Fatalf("dave rows: %v", v)
	}

	rows, err = e.Execute(ctx, "DELETE FROM users WHERE name = :name", map[string]string{"name": "dave"})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := rows[0].Get("RowsAffected"); v != int64(1) {
		t.Fatalf("delete RowsAffected: %v", v)
	}
}

func TestReadOnly(t *testing.T) {
	cases := map[string]bool{
		"SELECT * FROM users":                  true,
		"  select 1":                           true,
		"WITH x AS (SELECT 1) SELECT * FROM x": true,
		"(SELECT 1)":                           true,
		"INSERT INTO users VALUES (1)":         false,
		"update users SET name = 'x'":          false,
		"":                                     false,
	}
	for q, want := range cases {
		if got := readOnly(q); got != want {
			t.Errorf("readOnly(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestRow_MarshalJSONKeepsOrder(t *testing.T) {
	r := Row{cols: []string{"z", "a", "m"}, vals: []any{int64(1), "two", nil}}
	b, err := r.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"z":1,"a":"two","m":null}` {
		t.Fatalf("got %s", b)
	}
}

func TestDistanceFunc(t *testing.T) {
	v, err := distanceFunc(nil, []driver.Value{52.3676, 4.9041, "51.9244", []byte("4.4777")})
	if err != nil {
		t.Fatal(err)
	}
	d, ok := v.(float64)
	if !ok || d < 57 || d > 58 {
		t.Fatalf("got %v", v)
	}
	if v, _ := distanceFunc(nil, []driver.Value{nil, 4.9, 52.0, 4.3}); v != nil {
		t.Fatalf("NULL input should give NULL, got %v", v)
	}
}
