package commands

import (
	"runtime"
	"runtime/debug"

	"github.com/descilabs/launchpad/internal/config"
)

// Global CLI flags
var (
	// ConfigPath is the path to the config file
	ConfigPath string

	// MetricsAddr exposes Prometheus metrics on this address when set
	MetricsAddr string
)

func configPath() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	return config.DefaultConfigPath()
}

// GetConfig loads the config from the --config flag or the default
// path. Falls back to defaults when no file exists.
func GetConfig() (*config.Config, error) {
	return config.Load(configPath())
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// GetCommit returns the git commit
func GetCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 8 {
					return setting.Value[:8]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}

// GetGoVersion returns the Go version
func GetGoVersion() string {
	return runtime.Version()
}
