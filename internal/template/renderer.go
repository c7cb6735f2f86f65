// Package template implements the tiny placeholder language the
// notifier uses for subject/plain/html substitution: "${name}" tokens
// resolved against a flat string map. There is no conditional logic,
// no loops, no escaping beyond plain substitution — deliberately, so
// that an undeclared placeholder is unambiguously a caller error
// rather than a templating-engine edge case.
//
// A general-purpose engine (text/template, Masterminds/sprig, etc) is
// not used here: none of those treat a missing map key as a hard
// error by default, and smuggling that behavior in via a custom
// FuncMap/Option would be more code than this scanner. See DESIGN.md.
package template

import (
	"fmt"
	"strings"
)

// ErrUndeclaredPlaceholder is wrapped into the error returned by
// Render when the template references a name absent from values.
type ErrUndeclaredPlaceholder struct {
	Name string
}

func (e *ErrUndeclaredPlaceholder) Error() string {
	return fmt.Sprintf("template: undeclared placeholder %q", e.Name)
}

// Render substitutes every "${name}" occurrence in tmpl with
// values[name]. It fails closed: a placeholder with no entry in
// values is an error, not a silent blank.
func Render(tmpl string, values map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "${")
		if start == -1 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		out.WriteString(tmpl[i:start])

		end := strings.IndexByte(tmpl[start+2:], '}')
		if end == -1 {
			return "", fmt.Errorf("template: unterminated placeholder starting at %d", start)
		}
		end += start + 2

		name := tmpl[start+2 : end]
		val, ok := values[name]
		if !ok {
			return "", fmt.Errorf("template: render failed: %w", &ErrUndeclaredPlaceholder{Name: name})
		}
		out.WriteString(val)

		i = end + 1
	}

	return out.String(), nil
}
