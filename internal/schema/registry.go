package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry is an immutable set of schemas keyed by entity type name,
// loaded once and shared read-only across all synthesis calls.
type Registry struct {
	byType map[string]Schema
}

type registryDoc struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadRegistry reads and parses a YAML schema registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses a YAML schema registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var doc registryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema registry: %w", err)
	}
	if len(doc.Schemas) == 0 {
		return nil, fmt.Errorf("schema registry defines no schemas")
	}

	byType := make(map[string]Schema, len(doc.Schemas))
	for _, s := range doc.Schemas {
		if s.Type == "" {
			return nil, fmt.Errorf("schema with domain %q has no type name", s.Domain)
		}
		if s.Domain == "" {
			return nil, fmt.Errorf("schema %q has no domain", s.Type)
		}
		if s.EventType == "" {
			return nil, fmt.Errorf("schema %q has no event type", s.Type)
		}
		if s.Identifier.MaxLength != 0 && s.Identifier.MaxLength < s.Identifier.MinLength {
			return nil, fmt.Errorf("schema %q: max identifier length %d below min %d",
				s.Type, s.Identifier.MaxLength, s.Identifier.MinLength)
		}
		if _, dup := byType[s.Type]; dup {
			return nil, fmt.Errorf("duplicate schema for type %q", s.Type)
		}
		byType[s.Type] = s
	}
	return &Registry{byType: byType}, nil
}

// Lookup returns the schema for an entity type name.
func (r *Registry) Lookup(typeName string) (Schema, bool) {
	s, ok := r.byType[typeName]
	return s, ok
}

// Types returns all registered entity type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
