// Package sqltemplate substitutes {{NAME}} placeholders in SQL text with
// configured values. Substitution is a single pass: a value containing
// {{...}} text is inserted verbatim and never re-scanned.
package sqltemplate

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// placeholderRe matches {{NAME}} tokens. Names are word characters only,
// matching the CH_QUERY_VAR_ environment contract.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// MissingVariableError reports placeholders that had no substitution value.
// The runner fails fast rather than sending literal {{NAME}} text to the
// database.
type MissingVariableError struct {
	Names []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variables: %s", strings.Join(e.Names, ", "))
}

// Placeholders returns the unique placeholder names in text, in order of
// first appearance.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}

	return names
}

// Resolve replaces every {{NAME}} occurrence in text with vars[NAME].
// Parameters:
//   - text: raw SQL template text.
//   - vars: placeholder values; keys are case-sensitive.
// Returns:
//   - string: resolved SQL text.
//   - error: *MissingVariableError naming every unresolved placeholder.
func Resolve(text string, vars map[string]string) (string, error) {
	var missing []string

	resolved := placeholderRe.ReplaceAllStringFunc(text, func(token string) string {
		name := token[2 : len(token)-2]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return token
		}
		return value
	})

	if len(missing) > 0 {
		return "", &MissingVariableError{Names: dedupe(missing)}
	}

	return resolved, nil
}

// ResolveFile loads a UTF-8 SQL file from disk and resolves its placeholders.
func ResolveFile(path string, vars map[string]string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read SQL file %s: %w", path, err)
	}

	resolved, err := Resolve(string(content), vars)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}

	return resolved, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
