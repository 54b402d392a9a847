package env

import (
	"os"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{\s*\$([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// LookupFunc resolves a variable name. os.LookupEnv satisfies it.
type LookupFunc func(string) (string, bool)

// Interpolator replaces {{$VAR}} references with values from a lookup.
// Unresolved references are left in place and reported to Warn.
type Interpolator struct {
	Lookup LookupFunc
	Warn   func(format string, args ...any)
}

// NewInterpolator returns an Interpolator backed by the process environment.
func NewInterpolator() *Interpolator {
	return &Interpolator{Lookup: os.LookupEnv}
}

func (i *Interpolator) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if val, ok := i.Lookup(name); ok {
			return val
		}
		if i.Warn != nil {
			i.Warn("unresolved environment variable: $%s", name)
		}
		return match
	})
}

// ResolveAll resolves every value of values into a new map.
func (i *Interpolator) ResolveAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = i.Resolve(v)
	}
	return result
}

// HasUnresolved reports whether input still contains a {{$VAR}} reference.
func HasUnresolved(input string) bool {
	return variablePattern.MatchString(input)
}
