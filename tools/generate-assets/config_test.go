package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestAssetData_Resolved(t *testing.T) {
	d := &AssetData{
		Defaults: AssetStyle{BgColor: "#101010", FgColor: "#FFFFFF", Size: 512, FontSize: 300},
		Assets: map[string]AssetStyle{
			"movie":   {BgColor: "#AA5CC3"},
			"episode": {Glyph: "TV", FontSize: 230},
			"play":    {Shape: ShapePlay, Size: 256},
		},
	}

	tests := []struct {
		name string
		want AssetStyle
	}{
		{"movie", AssetStyle{Glyph: "M", BgColor: "#AA5CC3", FgColor: "#FFFFFF", Size: 512, FontSize: 300}},
		{"episode", AssetStyle{Glyph: "TV", BgColor: "#101010", FgColor: "#FFFFFF", Size: 512, FontSize: 230}},
		{"play", AssetStyle{Shape: ShapePlay, BgColor: "#101010", FgColor: "#FFFFFF", Size: 256, FontSize: 300}},
		{"unlisted", AssetStyle{Glyph: "U", BgColor: "#101010", FgColor: "#FFFFFF", Size: 512, FontSize: 300}},
	}
	for _, tt := range tests {
		if got := d.Resolved(tt.name); got != tt.want {
			t.Errorf("Resolved(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}

	if got, want := d.Names(), []string{"episode", "movie", "play"}; !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if !d.NeedsFont() {
		t.Error("NeedsFont() = false with glyph assets")
	}
	shapesOnly := &AssetData{Assets: map[string]AssetStyle{"pause": {Shape: ShapePause}}}
	if shapesOnly.NeedsFont() {
		t.Error("NeedsFont() = true for shapes only")
	}
}

func TestLoadAssetData(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	d, err := LoadAssetData(write("ok.json", `{"defaults":{"size":64},"assets":{"play":{"shape":"play"}}}`))
	if err != nil {
		t.Fatalf("LoadAssetData: %v", err)
	}
	if d.Resolved("play").Size != 64 {
		t.Errorf("Size = %d, want 64", d.Resolved("play").Size)
	}

	if _, err := LoadAssetData(write("bad.json", `{"assets":{"x":{"shape":"star"}}}`)); err == nil {
		t.Error("expected error for unknown shape")
	}
	if _, err := LoadAssetData(write("broken.json", `{`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// The repository's asset list must load and cover every artwork key.
func TestRepositoryAssets(t *testing.T) {
	d, err := LoadAssetData("../../data/assets.json")
	if err != nil {
		t.Fatalf("LoadAssetData: %v", err)
	}
	for _, key := range []string{"jellyfin", "movie", "episode", "music"} {
		if _, ok := d.Assets[key]; !ok {
			t.Errorf("assets.json lacks %q", key)
		}
	}
}
