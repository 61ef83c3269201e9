// Package version reports the build version, taken from version.txt when
// generated or from the module build info otherwise.
package version

import (
	"embed"
	"runtime/debug"
	"strings"
)

//go:embed version.*
var versions embed.FS

// Version is the build version
var Version = "unknown"

func init() {
	if b, err := versions.ReadFile("version.txt"); err == nil {
		Version = strings.TrimSpace(string(b))
		return
	}
	if inf, ok := debug.ReadBuildInfo(); ok && inf.Main.Version != "" {
		Version = inf.Main.Version
	}
}
