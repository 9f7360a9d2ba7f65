package sqlgen

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/baas/fault"
)

// Scalar converts a decoded JSON scalar to the text that gets bound.
// Booleans follow the "1"/"0" convention, null becomes "".
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case nil:
		return "", true
	default:
		return "", false
	}
}

func scalars(item []any) ([]string, bool) {
	out := make([]string, len(item))
	for i, v := range item {
		s, ok := Scalar(v)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// ParseWhere turns the decoded "where" member into triples. A nil member
// yields no triples. Any element that is not a three-element list of
// scalars aborts with a Validation error naming the element.
func ParseWhere(raw any) ([]Triple, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fault.Validationf("Invalid where clause").
			WithFix("Use: where[[field, operator, value]]")
	}
	triples := make([]Triple, 0, len(list))
	for _, el := range list {
		item, ok := el.([]any)
		if !ok || len(item) != 3 {
			return nil, fault.Validationf("Incorrect number of (where) parameters [Expected: 3]").
				WithFix("Use: where[[field, operator, value]]").
				With("Where", el)
		}
		s, ok := scalars(item)
		if !ok {
			return nil, fault.Validationf("Where parameters must be scalar values").
				With("Where", el)
		}
		triples = append(triples, Triple{Left: s[0], Op: ParseOperator(s[1]), Tag: s[1], Right: s[2]})
	}
	return triples, nil
}

// ParseSet turns the decoded "values" member of an update into pairs.
func ParseSet(raw any) ([]Pair, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fault.Validationf("Can not update nothing").
			WithFix("Use: values[[key, value]]")
	}
	pairs := make([]Pair, 0, len(list))
	for _, el := range list {
		item, ok := el.([]any)
		if !ok || len(item) != 2 {
			return nil, fault.Validationf("Incorrect number of (set) parameters [Expected: 2]").
				WithFix("Use: values[[key, value]]").
				With("Values", el)
		}
		s, ok := scalars(item)
		if !ok {
			return nil, fault.Validationf("Set parameters must be scalar values").
				With("Values", el)
		}
		pairs = append(pairs, Pair{Field: s[0], Value: s[1]})
	}
	return pairs, nil
}

// ParseInsert turns the decoded "values" member of an insert into a
// column → value mapping. Both {"col": value} and [[col, value]] are
// accepted. Column names are trimmed.
func ParseInsert(raw any) (map[string]string, error) {
	values := make(map[string]string)
	switch v := raw.(type) {
	case map[string]any:
		for k, val := range v {
			s, ok := Scalar(val)
			if !ok {
				return nil, fault.Validationf("Insert values must be scalar values").With("Parameter", k)
			}
			values[strings.TrimSpace(k)] = s
		}
	case []any:
		pairs, err := ParseSet(v)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			values[strings.TrimSpace(p.Field)] = p.Value
		}
	default:
		return nil, fault.Validationf("Can not insert nothing").
			WithFix("Use: values{key: value}")
	}
	return values, nil
}

// ParseLimit returns the limit when raw is a non-negative whole number
// (JSON number or numeric string). Anything else means "no limit".
func ParseLimit(raw any) *int64 {
	s, ok := Scalar(raw)
	if !ok || raw == nil {
		return nil
	}
	if _, isBool := raw.(bool); isBool {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	n := int64(f)
	return &n
}
