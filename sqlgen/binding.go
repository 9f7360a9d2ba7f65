package sqlgen

import (
	"database/sql"
	"strconv"
	"strings"
)

// Binding is one bind parameter: its generated name and the client value.
// Numeric marks values that the engine should compare as numbers (location
// coordinates and radius); Value always keeps the exact client text.
type Binding struct {
	ID      string
	Value   string
	Numeric bool
}

// Arg returns the driver argument for the binding. Numeric bindings whose
// text parses as a float are bound as float64, everything else as text.
func (b Binding) Arg() any {
	if b.Numeric {
		if f, err := strconv.ParseFloat(strings.TrimSpace(b.Value), 64); err == nil {
			return f
		}
	}
	return b.Value
}

// Bindings is an ordered list of bind parameters.
type Bindings []Binding

// Named returns the bindings as sql.Named arguments.
func (bs Bindings) Named() []any {
	args := make([]any, len(bs))
	for i, b := range bs {
		args[i] = sql.Named(b.ID, b.Arg())
	}
	return args
}

// Map returns paramID → value.
func (bs Bindings) Map() map[string]string {
	m := make(map[string]string, len(bs))
	for _, b := range bs {
		m[b.ID] = b.Value
	}
	return m
}

func (bs Bindings) lookup(id string) (Binding, bool) {
	for _, b := range bs {
		if b.ID == id {
			return b, true
		}
	}
	return Binding{}, false
}
