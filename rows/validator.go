package rows

import (
	"context"
	"fmt"
)

// Exempt lists the columns an insert may omit. The server or the database
// fills them in.
var Exempt = map[string]bool{"id": true, "latitude": true, "longitude": true}

// Catalog lists a table's columns in declaration order.
type Catalog interface {
	Columns(ctx context.Context, table string) ([]string, error)
}

// Validator checks insert payloads for completeness.
type Validator struct {
	catalog Catalog
}

// NewValidator creates a validator reading schemas from catalog.
func NewValidator(catalog Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate fetches the columns of table and checks that values supplies
// every column outside Exempt. The first missing column, in schema order,
// is reported. On success the schema snapshot is returned so the caller
// emits the INSERT in the same order.
func (v *Validator) Validate(ctx context.Context, table string, values map[string]string) ([]string, error) {
	cols, err := v.catalog.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if Exempt[c] {
			continue
		}
		if _, ok := values[c]; !ok {
			return nil, &MissingFieldError{Table: table, Field: c}
		}
	}
	return cols, nil
}

// MissingFieldError names the first required column an insert left out.
type MissingFieldError struct {
	Table string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("rows: insert into %s: missing %q", e.Table, e.Field)
}
