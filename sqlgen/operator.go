package sqlgen

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavour for engine-specific fragments.
type Dialect int

const (
	SQLite Dialect = iota
	MySQL
)

func (d Dialect) String() string {
	if d == MySQL {
		return "mysql"
	}
	return "sqlite"
}

// ParseDialect maps a configured engine name to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return SQLite, fmt.Errorf("sqlgen: unknown database engine %q", s)
	}
}

// Operator is the canonical form of a filter operator tag.
type Operator int

const (
	// Unknown marks a tag that maps to no operator. Clauses with an unknown
	// operator are dropped from the compiled WHERE.
	Unknown Operator = iota
	Equals
	NotEquals
	Like
	Location
)

var operatorTags = map[string]Operator{
	"eq":       Equals,
	"=":        Equals,
	"neq":      NotEquals,
	"!=":       NotEquals,
	"like":     Like,
	"loc":      Location,
	"location": Location,
}

// ParseOperator maps a client tag (case-insensitive) to its Operator.
func ParseOperator(tag string) Operator {
	if op, ok := operatorTags[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return op
	}
	return Unknown
}

func (o Operator) String() string {
	switch o {
	case Equals:
		return "eq"
	case NotEquals:
		return "neq"
	case Like:
		return "like"
	case Location:
		return "location"
	default:
		return "unknown"
	}
}

// comparison returns the SQL comparison for the scalar operators.
func (o Operator) comparison() string {
	switch o {
	case Equals:
		return "="
	case NotEquals:
		return "!="
	case Like:
		return "LIKE"
	}
	return ""
}
