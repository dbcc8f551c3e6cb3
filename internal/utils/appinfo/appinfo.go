// Package appinfo reports build information for health endpoints and logs.
package appinfo

import (
	"os"
	"runtime"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get reads APP_VERSION, falling back to the module version and VCS
// revision embedded at build time.
func Get() Info {
	info := Info{Version: os.Getenv("APP_VERSION"), GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				info.Revision = s.Value[:7]
			}
		}
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}
	return info
}
