// Package template renders release URLs and file names from named
// placeholder templates.
//
// Placeholders are written $name or ${name}; $$ produces a literal dollar
// sign. Names follow identifier rules (letters, digits, underscore, not
// starting with a digit). A name missing from the dictionary is an error,
// never an empty substitution.
package template

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
)

// Render substitutes placeholders in tmpl from values.
func Render(tmpl string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(tmpl) {
			return "", fmt.Errorf("invalid placeholder at end of template %q", tmpl)
		}

		switch next := tmpl[i+1]; {
		case next == '$':
			b.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(tmpl[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d in template %q", i, tmpl)
			}
			name := tmpl[i+2 : i+2+end]
			if !isIdentifier(name) {
				return "", fmt.Errorf("invalid placeholder %q in template %q", name, tmpl)
			}
			v, ok := values[name]
			if !ok {
				return "", fault.MissingPlaceholder.New("%q in template %q", name, tmpl)
			}
			b.WriteString(v)
			i += 3 + end
		case isIdentStart(next):
			j := i + 2
			for j < len(tmpl) && isIdentChar(tmpl[j]) {
				j++
			}
			name := tmpl[i+1 : j]
			v, ok := values[name]
			if !ok {
				return "", fault.MissingPlaceholder.New("%q in template %q", name, tmpl)
			}
			b.WriteString(v)
			i = j
		default:
			return "", fmt.Errorf("invalid placeholder at offset %d in template %q", i, tmpl)
		}
	}

	return b.String(), nil
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
