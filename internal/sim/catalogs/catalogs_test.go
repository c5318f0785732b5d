package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_AirIsPaletteZero(t *testing.T) {
	dir := t.TempDir()
	raw := `[
	  {"id":"STONE","solid":true,"animatable":true},
	  {"id":"OAK_STAIRS","solid":true,"animatable":true,"rotatable":true},
	  {"id":"BEDROCK","solid":true,"animatable":false}
	]`
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Palette[0] != Air || c.Index[Air] != 0 {
		t.Fatalf("AIR must be palette id 0, got palette=%v", c.Palette)
	}
	if !c.Animatable("STONE") {
		t.Fatalf("STONE should be animatable")
	}
	if c.Animatable("BEDROCK") || c.Animatable(Air) || c.Animatable("UNKNOWN") {
		t.Fatalf("BEDROCK/AIR/unknown must not be animatable")
	}
	if !c.Rotatable("OAK_STAIRS") || c.Rotatable("STONE") {
		t.Fatalf("unexpected rotatable flags")
	}
}

func TestLoad_RejectsEmptyID(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":""}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
