// Package language defines the build / run recipes of the supported languages
// and the immutable registry used to look them up.
package language

import (
	"strings"

	"github.com/criyle/go-sandbox/runner"
)

// Slots that may appear in a recipe template
const (
	SlotSource   = "{source}"
	SlotArtifact = "{artifact}"
	SlotWorkDir  = "{workdir}"
)

// Spec defines the recipe to compile / run a program in one language
type Spec struct {
	ID   string
	Name string

	// SourceFile is the file name the submitted code is written to
	SourceFile string
	// ArtifactFile is the file name produced by the compile step, if any
	ArtifactFile string

	// Compile is empty for interpreted languages
	Compile Template
	Run     Template

	// MemoryLimit overrides the default address space limit when non-zero
	MemoryLimit runner.Size
}

// Compiled reports whether the language has a build step
func (s Spec) Compiled() bool {
	return len(s.Compile) > 0
}

// Paths are the concrete values substituted into template slots
type Paths struct {
	Source   string
	Artifact string
	WorkDir  string
}

// Template is an argv whose elements may contain named slots
type Template []string

// Expand substitutes slots with the given paths and returns a new argv
func (t Template) Expand(p Paths) []string {
	r := strings.NewReplacer(
		SlotSource, p.Source,
		SlotArtifact, p.Artifact,
		SlotWorkDir, p.WorkDir,
	)
	args := make([]string, 0, len(t))
	for _, a := range t {
		args = append(args, r.Replace(a))
	}
	return args
}

// Has reports whether any argument references the slot
func (t Template) Has(slot string) bool {
	for _, a := range t {
		if strings.Contains(a, slot) {
			return true
		}
	}
	return false
}

// RunArgs returns the argv to execute the program. Interpreted recipes
// without a {source} slot get the source path appended.
func (s Spec) RunArgs(p Paths) []string {
	args := s.Run.Expand(p)
	if !s.Compiled() && !s.Run.Has(SlotSource) {
		args = append(args, p.Source)
	}
	return args
}

// CompileArgs returns the argv to build the program, nil if not compiled
func (s Spec) CompileArgs(p Paths) []string {
	if !s.Compiled() {
		return nil
	}
	return s.Compile.Expand(p)
}
