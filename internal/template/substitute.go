// Package template provides placeholder substitution for experiment
// documents: ${var} lookups, ${env:VAR} environment reads, and generator
// functions like ${uuid()} for producing unique entity names per run.
package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// varPattern matches ${var}, ${env:VAR} and ${fn(args)} placeholders.
var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces placeholders in text. Variables come from vars;
// ${env:VAR} reads the process environment; anything with parentheses is
// tried as a generator function. Returns all errors joined if multiple
// placeholders fail. Text without placeholders is returned unchanged.
func Substitute(text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	var errs []error
	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]

		if strings.HasPrefix(expr, "env:") {
			envName := expr[4:]
			if val, ok := os.LookupEnv(envName); ok {
				return val
			}
			errs = append(errs, fmt.Errorf("env var %q not set", envName))
			return match
		}

		if val, handled, err := evalFunction(expr); handled {
			if err != nil {
				errs = append(errs, err)
				return match
			}
			return val
		}

		if val, ok := vars[expr]; ok {
			return val
		}
		errs = append(errs, fmt.Errorf("variable %q not found", expr))
		return match
	})

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return result, nil
}

// SubstituteMap applies substitution to all values in a map.
func SubstituteMap(m map[string]string, vars map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]string, len(m))
	var errs []error
	for k, v := range m {
		substituted, err := Substitute(v, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("key %q: %w", k, err))
			continue
		}
		result[k] = substituted
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}
