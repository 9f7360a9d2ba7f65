package sqlgen

import "strings"

// Positional rewrites every ":name" placeholder that refers to one of the
// statement's bindings into "?", and returns the argument list in the order
// the placeholders appear. Text inside backtick identifiers and quoted
// literals is copied untouched; unknown ":names" are left as they are.
func (s Statement) Positional() (string, []any) {
	var sb strings.Builder
	sb.Grow(len(s.SQL))
	args := make([]any, 0, len(s.Bindings))

	src := s.SQL
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == '`' || ch == '\'' || ch == '"':
			end := quotedEnd(src, i)
			sb.WriteString(src[i:end])
			i = end

		case ch == ':' && i+1 < len(src) && isNameStart(src[i+1]):
			j := i + 1
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			if b, ok := s.Bindings.lookup(src[i+1 : j]); ok {
				sb.WriteByte('?')
				args = append(args, b.Arg())
			} else {
				sb.WriteString(src[i:j])
			}
			i = j

		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return sb.String(), args
}

// quotedEnd returns the index just past the quoted run starting at i.
// A doubled quote character inside the run is an escaped quote.
func quotedEnd(src string, i int) int {
	q := src[i]
	j := i + 1
	for j < len(src) {
		if src[j] == '\\' && q != '`' {
			j += 2
			continue
		}
		if src[j] == q {
			if j+1 < len(src) && src[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(src)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
