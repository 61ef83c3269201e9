package language

import (
	"errors"
	"fmt"
	"os"

	"github.com/criyle/go-sandbox/runner"
	"github.com/goccy/go-yaml"
	"github.com/google/shlex"
)

// fileConfig is the on disk form of the language table, e.g.
//
//	languages:
//	  - id: cpp
//	    source: solution.cpp
//	    artifact: solution
//	    compile: g++ -O3 -std=c++17 {source} -o {artifact}
//	    run: "{artifact}"
//	aliases:
//	  c++: cpp
type fileConfig struct {
	Languages []fileSpec        `yaml:"languages"`
	Aliases   map[string]string `yaml:"aliases"`
}

type fileSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Source      string `yaml:"source"`
	Artifact    string `yaml:"artifact"`
	Compile     string `yaml:"compile"`
	Run         string `yaml:"run"`
	MemoryLimit string `yaml:"memoryLimit"`
}

// LoadFile reads the language table from a yaml file. If the file does not
// exist, the built-in table is returned.
func LoadFile(name string) (*Registry, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(b)
}

// Parse parses the yaml language table
func Parse(b []byte) (*Registry, error) {
	var conf fileConfig
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return nil, fmt.Errorf("language: parse config: %w", err)
	}
	if len(conf.Languages) == 0 {
		return nil, errors.New("language: config defines no language")
	}
	specs := make([]Spec, 0, len(conf.Languages))
	for _, l := range conf.Languages {
		s, err := l.spec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return NewRegistry(specs, conf.Aliases)
}

func (l fileSpec) spec() (Spec, error) {
	s := Spec{
		ID:           l.ID,
		Name:         l.Name,
		SourceFile:   l.Source,
		ArtifactFile: l.Artifact,
	}
	var err error
	if l.Compile != "" {
		if s.Compile, err = shlex.Split(l.Compile); err != nil {
			return s, fmt.Errorf("language %s: compile: %w", l.ID, err)
		}
	}
	if s.Run, err = shlex.Split(l.Run); err != nil {
		return s, fmt.Errorf("language %s: run: %w", l.ID, err)
	}
	if l.MemoryLimit != "" {
		var m runner.Size
		if err := m.Set(l.MemoryLimit); err != nil {
			return s, fmt.Errorf("language %s: memoryLimit: %w", l.ID, err)
		}
		s.MemoryLimit = m
	}
	return s, nil
}
