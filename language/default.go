package language

import "github.com/criyle/go-sandbox/runner"

// managed runtimes reserve large virtual ranges on start up
const (
	runtimeMemoryLimit runner.Size = 4 << 30
	jvmMemoryLimit     runner.Size = 8 << 30
)

var defaultSpecs = []Spec{
	{
		ID:           "cpp",
		Name:         "C++",
		SourceFile:   "solution.cpp",
		ArtifactFile: "solution",
		Compile:      Template{"g++", "-O3", "-std=c++17", SlotSource, "-o", SlotArtifact},
		Run:          Template{SlotArtifact},
	},
	{
		ID:         "python",
		Name:       "Python 3",
		SourceFile: "solution.py",
		Run:        Template{"python3", SlotSource},
	},
	{
		ID:          "nodejs",
		Name:        "Node.js",
		SourceFile:  "solution.js",
		Run:         Template{"node", SlotSource},
		MemoryLimit: runtimeMemoryLimit,
	},
	{
		ID:           "java",
		Name:         "Java",
		SourceFile:   "Solution.java",
		ArtifactFile: "Solution.class",
		Compile:      Template{"javac", SlotSource},
		Run:          Template{"java", "Solution"},
		MemoryLimit:  jvmMemoryLimit,
	},
	{
		ID:          "go",
		Name:        "Go",
		SourceFile:  "solution.go",
		Run:         Template{"go", "run", SlotSource},
		MemoryLimit: runtimeMemoryLimit,
	},
}

var defaultAliases = map[string]string{
	"c++":        "cpp",
	"javascript": "nodejs",
	"js":         "nodejs",
	"node":       "nodejs",
	"py":         "python",
	"python3":    "python",
	"golang":     "go",
}

// Default returns the registry with the built-in language table
func Default() *Registry {
	r, err := NewRegistry(defaultSpecs, defaultAliases)
	if err != nil {
		panic(err)
	}
	return r
}
