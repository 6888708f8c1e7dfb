// Package paths names the files in the daemon's data directory.
package paths

import (
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "daemon.pid"
	ConfigFile = "config.toml"
	LogFile    = "daemon.log"
)

const (
	BinaryName = "jellycord"
	DataDirRel = ".jellycord" // relative to $HOME
)

// ReleaseManifest is the release manifest path relative to the repository root.
const ReleaseManifest = ".release-manifest.json"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir builds paths rooted at a data directory.
type DataDir struct {
	Root string
}

// Default returns ~/.jellycord, or ./.jellycord when the home directory is
// unknown.
func Default() DataDir {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{Root: DataDirRel}
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }
