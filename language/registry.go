package language

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnsupportedLanguage is returned when the language id is not registered
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Registry maps language ids to their specs. It is read only after
// construction and safe for concurrent use.
type Registry struct {
	specs   map[string]Spec
	aliases map[string]string
}

// NewRegistry creates a registry from specs and an alias table (alias -> id)
func NewRegistry(specs []Spec, aliases map[string]string) (*Registry, error) {
	r := &Registry{
		specs:   make(map[string]Spec, len(specs)),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, s := range specs {
		id := normalize(s.ID)
		if id == "" {
			return nil, errors.New("language: empty id")
		}
		if _, ok := r.specs[id]; ok {
			return nil, fmt.Errorf("language: duplicated id %q", id)
		}
		if s.SourceFile == "" {
			return nil, fmt.Errorf("language %s: empty source file", id)
		}
		if len(s.Run) == 0 {
			return nil, fmt.Errorf("language %s: empty run command", id)
		}
		s.ID = id
		s.Compile = slices.Clone(s.Compile)
		s.Run = slices.Clone(s.Run)
		r.specs[id] = s
	}
	for a, id := range aliases {
		id = normalize(id)
		if _, ok := r.specs[id]; !ok {
			return nil, fmt.Errorf("language: alias %q refers to unknown id %q", a, id)
		}
		r.aliases[normalize(a)] = id
	}
	return r, nil
}

// Lookup returns the spec for the id or one of its aliases (case insensitive)
func (r *Registry) Lookup(id string) (Spec, error) {
	id = normalize(id)
	if a, ok := r.aliases[id]; ok {
		id = a
	}
	s, ok := r.specs[id]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, id)
	}
	// templates are shared, hand out copies
	s.Compile = slices.Clone(s.Compile)
	s.Run = slices.Clone(s.Run)
	return s, nil
}

// IDs returns the sorted registered language ids
func (r *Registry) IDs() []string {
	return slices.Sorted(maps.Keys(r.specs))
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
