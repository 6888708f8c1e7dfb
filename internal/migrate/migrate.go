// Package migrate upgrades versioned on-disk documents one schema version
// at a time.
package migrate

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades a document from Version-1 to Version.
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short label for log output.
	Description string
	// Upgrade transforms the raw document.
	Upgrade func(data []byte) ([]byte, error)
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Run applies, in version order, every migration newer than fromVersion.
// It returns the transformed data and the version reached. On error the
// version is the last one successfully applied.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := slices.SortedFunc(slices.Values(migrations), func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	version := fromVersion
	for _, m := range sorted {
		if version >= m.Version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}

// NeedsMigration reports whether a document at fileVersion differs from
// currentVersion or predates any registered migration.
func NeedsMigration(fileVersion, currentVersion int, migrations []Migration) bool {
	if fileVersion != currentVersion {
		return true
	}
	return slices.ContainsFunc(migrations, func(m Migration) bool {
		return fileVersion < m.Version
	})
}
