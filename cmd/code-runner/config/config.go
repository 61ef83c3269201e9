package config

import (
	"os"
	"runtime"
	"time"

	"github.com/criyle/code-runner/envexec"
	"github.com/koding/multiconfig"
)

// Config defines code runner server configuration
type Config struct {
	// runner
	Parallelism      int           `flagUsage:"control the # of concurrency execution (default equal to number of cpu)"`
	Dir              string        `flagUsage:"specifies the directory holding per request workspaces (os temp dir by default)"`
	LanguageConf     string        `flagUsage:"specifies language configuration file (built-in languages if absent)" default:"languages.yaml"`
	TimeLimit        time.Duration `flagUsage:"specifies wall clock limit for each program" default:"5s"`
	CompileTimeLimit time.Duration `flagUsage:"specifies wall clock limit for each compilation" default:"10s"`
	MemoryLimit      *envexec.Size `flagUsage:"specifies default address space limit" default:"1g"`
	FileSizeLimit    *envexec.Size `flagUsage:"specifies POSIX rlimit for file size for each command" default:"64m"`
	OutputLimit      *envexec.Size `flagUsage:"specifies captured bytes for each of stdout and stderr" default:"4m"`

	// server config
	HTTPAddr       string   `flagUsage:"specifies the http binding address" default:":8000"`
	MonitorAddr    string   `flagUsage:"specifies the metrics binding address" default:":8001"`
	AllowedOrigins []string `flagUsage:"specifies allowed request origins (all if empty)"`
	EnableDebug    bool     `flagUsage:"enable debug endpoint"`
	EnableMetrics  bool     `flagUsage:"enable promethus metrics endpoint"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from flag & environment variables
func (c *Config) Load() error {
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "CR",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "CR",
		},
	)
	if os.Getpid() == 1 {
		c.Release = true
	}
	if err := cl.Load(c); err != nil {
		return err
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	return nil
}
