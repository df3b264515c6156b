package experiment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"entprobe/internal/template"
)

type fileDoc struct {
	Experiments []Experiment `yaml:"experiments"`
	// A file may also be one bare experiment document.
	Experiment `yaml:",inline"`
}

// Load reads a YAML experiment file and resolves all placeholders. params
// are caller-supplied variables that override the file's own vars.
func Load(path string, params map[string]string) ([]Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}
	exps, err := Parse(data, params)
	if err != nil {
		return nil, fmt.Errorf("experiment file %s: %w", path, err)
	}
	return exps, nil
}

// Parse parses one YAML document holding either a list under
// "experiments" or a single bare experiment, then resolves placeholders
// and validates each experiment.
//
// Placeholder resolution happens in a fixed order so that one run is
// internally consistent: vars are resolved first (generator functions like
// ${random_string(8)} are evaluated exactly once here), then identifiers,
// whose resolved values join the variable set, then overrides and
// expectation fields. An expectation can therefore refer to
// ${clusterName} and see the same generated value the payload carries.
func Parse(data []byte, params map[string]string) ([]Experiment, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing experiments: %w", err)
	}

	exps := doc.Experiments
	if len(exps) == 0 {
		if doc.Experiment.Name == "" {
			return nil, fmt.Errorf("no experiments defined")
		}
		exps = []Experiment{doc.Experiment}
	}

	for i := range exps {
		if err := exps[i].resolve(params); err != nil {
			return nil, err
		}
		if err := exps[i].Validate(); err != nil {
			return nil, err
		}
	}
	return exps, nil
}

func (e *Experiment) resolve(params map[string]string) error {
	vars := make(map[string]string, len(e.Vars)+len(params)+len(e.Identifiers))
	for k, v := range e.Vars {
		resolved, err := template.Substitute(v, params)
		if err != nil {
			return fmt.Errorf("experiment %q: var %q: %w", e.Name, k, err)
		}
		vars[k] = resolved
	}
	for k, v := range params {
		vars[k] = v
	}

	identifiers, err := template.SubstituteMap(e.Identifiers, vars)
	if err != nil {
		return fmt.Errorf("experiment %q: identifiers: %w", e.Name, err)
	}
	e.Identifiers = identifiers
	for k, v := range identifiers {
		vars[k] = v
	}

	for k, v := range e.Overrides {
		if s, ok := v.(string); ok {
			resolved, err := template.Substitute(s, vars)
			if err != nil {
				return fmt.Errorf("experiment %q: override %q: %w", e.Name, k, err)
			}
			e.Overrides[k] = resolved
		}
	}

	for i := range e.Expectations {
		exp := &e.Expectations[i]
		if exp.Query, err = template.Substitute(exp.Query, vars); err != nil {
			return fmt.Errorf("experiment %q: expectation %q: %w", e.Name, exp.Label(), err)
		}
		if exp.Source, err = template.Substitute(exp.Source, vars); err != nil {
			return fmt.Errorf("experiment %q: expectation %q: %w", e.Name, exp.Label(), err)
		}
		if exp.Target, err = template.Substitute(exp.Target, vars); err != nil {
			return fmt.Errorf("experiment %q: expectation %q: %w", e.Name, exp.Label(), err)
		}
	}
	return nil
}
