package catalogs

import (
	"path/filepath"
	"testing"
)

func TestLoad_ShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Animatable("STONE") || !c.Rotatable("OAK_STAIRS") || c.Animatable("LEVER") {
		t.Fatalf("unexpected block flags: %+v", c.Defs)
	}
}
