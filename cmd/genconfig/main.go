// Package main implements the genconfig tool that writes config.default.toml
// from config.ExampleConfig(), annotated with config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"tools.zach/dev/jellycord/internal/config"
)

func main() {
	// go generate runs from internal/config/, so ../../ is the repo root
	// where configdata.go embeds the file.
	outPath := flag.String("o", "../../config.default.toml", "output path")
	flag.Parse()

	data, err := generate(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

// ///////////////////////////////////////////////
// Generation
// ///////////////////////////////////////////////

// generator accumulates output lines while walking the encoded config.
type generator struct {
	docs    map[string]config.FieldDoc
	out     []string
	section []string
	emitted map[string]bool
}

// generate encodes cfg and annotates every key with its docs entry. Keys the
// encoder omits are still listed, commented out, under their section.
func generate(cfg *config.Config, docs map[string]config.FieldDoc) ([]byte, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	g := &generator{docs: docs, emitted: map[string]bool{}}
	g.out = append(g.out,
		"# ///////////////////////////////////////////////",
		"# Jellycord Configuration",
		"# ///////////////////////////////////////////////",
		"",
		"# Environment variables override values in this file.",
		"",
	)

	for line := range strings.SplitSeq(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[["):
			g.openSection(trimmed)
		case !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#"):
			g.out = append(g.out, trimmed)
		default:
			g.key(trimmed)
		}
	}
	g.injectOmitted()

	result := strings.TrimRight(strings.Join(g.out, "\n"), "\n") + "\n"
	return []byte(result), nil
}

// openSection writes a section separator and header.
func (g *generator) openSection(header string) {
	g.injectOmitted()

	name := strings.Trim(header, "[] ")
	g.section = parseSectionPath(name)
	g.out = append(g.out, "", fmt.Sprintf("# ///// %s /////", sectionName(name)), "")
	g.comment(g.docs[name].Comment)
	g.out = append(g.out, header)
}

// key writes one key = value line with its comment and alternatives.
func (g *generator) key(line string) {
	name, _, _ := strings.Cut(line, "=")
	path := strings.TrimSpace(name)
	if len(g.section) > 0 {
		path = strings.Join(g.section, ".") + "." + path
	}
	g.emitted[path] = true

	doc := g.docs[path]
	if last := g.out[len(g.out)-1]; last != "" && !strings.HasPrefix(last, "[") {
		g.out = append(g.out, "")
	}
	g.comment(doc.Comment)
	g.out = append(g.out, line)
	for _, alt := range doc.Alternatives {
		g.out = append(g.out, "# "+alt)
	}
}

func (g *generator) comment(text string) {
	if text == "" {
		return
	}
	for cl := range strings.SplitSeq(text, "\n") {
		g.out = append(g.out, strings.TrimRight("# "+cl, " "))
	}
}

// injectOmitted appends commented-out entries for documented keys of the
// current section that the encoder did not emit. Keys are sorted for
// deterministic output.
func (g *generator) injectOmitted() {
	if len(g.section) == 0 {
		return
	}
	prefix := strings.Join(g.section, ".") + "."

	var omitted []string
	for path := range g.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || g.emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	slices.Sort(omitted)

	for _, path := range omitted {
		doc := g.docs[path]
		g.out = append(g.out, "")
		g.comment(doc.Comment)
		for _, alt := range doc.Alternatives {
			g.out = append(g.out, "# "+alt)
		}
		g.emitted[path] = true
	}
}

// parseSectionPath splits a dotted TOML section header (e.g. "display.assets")
// into its path segments.
func parseSectionPath(section string) []string {
	return strings.Split(section, ".")
}

// sectionName returns a display name for a TOML section header: the last
// dotted segment with its first letter capitalized.
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if len(last) == 0 {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
