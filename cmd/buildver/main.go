// Package main prints the SemVer build version passed to the jellycord
// binary through -ldflags "-X main.version=...".
//
// Output depends on git state:
//
//	No tags, clean:     0.0.0-dev+05ffee5
//	No tags, dirty:     0.0.0-dev+05ffee5.dirty
//	On tag v0.1.0:      0.1.0
//	Dirty tag:          0.1.0-dirty
//	3 past v0.1.0:      0.1.0-dev.3+g1234567
//	Same but dirty:     0.1.0-dev.3+g1234567.dirty
//
// The no-tag base comes from the root entry of .release-manifest.json, the
// same file the daemon's update check reads from the repository.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/mod/semver"

	"tools.zach/dev/jellycord/internal/paths"
)

func main() {
	manifest := flag.String("manifest", paths.ReleaseManifest, "release manifest holding the base version")
	flag.Parse()

	fmt.Print(buildVersion(gitOutput, baseVersion(*manifest)))
}

// git runs a git subcommand and returns its trimmed output.
type git func(args ...string) (string, error)

func gitOutput(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(out)), err
}

// buildVersion prefers git describe against v-prefixed SemVer tags and falls
// back to base plus the short commit hash.
func buildVersion(run git, base string) string {
	if desc, err := run("describe", "--tags", "--match", "v*", "--dirty"); err == nil {
		if v, ok := formatTaggedVersion(desc); ok {
			return v
		}
	}

	hash, err := run("rev-parse", "--short=7", "HEAD")
	if err != nil || hash == "" {
		return base + "-dev"
	}
	if isDirty(run) {
		return fmt.Sprintf("%s-dev+%s.dirty", base, hash)
	}
	return fmt.Sprintf("%s-dev+%s", base, hash)
}

// formatTaggedVersion converts git describe output such as
// "v0.1.0-3-g1234567-dirty" into "0.1.0-dev.3+g1234567.dirty". It reports
// false when the tag part is not valid SemVer.
func formatTaggedVersion(desc string) (string, bool) {
	clean, dirty := strings.CutSuffix(desc, "-dirty")

	tag, commits, hash := clean, "", ""
	// git describe appends -<N>-g<hash> when HEAD is past the tag.
	if rest, h, ok := cutLast(clean, "-"); ok && strings.HasPrefix(h, "g") {
		if t, n, ok := cutLast(rest, "-"); ok && isDigits(n) {
			tag, commits, hash = t, n, h
		}
	}
	if !semver.IsValid(tag) {
		return "", false
	}
	tag = strings.TrimPrefix(tag, "v")

	switch {
	case commits != "" && dirty:
		return fmt.Sprintf("%s-dev.%s+%s.dirty", tag, commits, hash), true
	case commits != "":
		return fmt.Sprintf("%s-dev.%s+%s", tag, commits, hash), true
	case dirty:
		return tag + "-dirty", true
	default:
		return tag, true
	}
}

func cutLast(s, sep string) (before, after string, ok bool) {
	i := strings.LastIndex(s, sep)
	if i <= 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isDirty reports whether the working tree has uncommitted changes.
func isDirty(run git) bool {
	out, err := run("status", "--porcelain")
	return err == nil && out != ""
}

// baseVersion reads the root entry (key ".") of the release manifest at
// path. It returns "0.0.0" when the file is missing or the entry is not
// SemVer.
func baseVersion(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "0.0.0"
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "0.0.0"
	}
	v := strings.TrimPrefix(manifest["."], "v")
	if !semver.IsValid("v" + v) {
		return "0.0.0"
	}
	return v
}
