package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const Air = "AIR"

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
	// Animatable blocks may be picked up by a moving structure. Everything else
	// inside a structure's cuboid is left where it is.
	Animatable bool `json:"animatable"`
	// Rotatable blocks carry a facing that follows structure rotation.
	Rotatable bool `json:"rotatable,omitempty"`
}

// Load reads <configDir>/blocks.json.
func Load(configDir string) (*BlockCatalog, error) {
	var c BlockCatalog
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromDefs builds a catalog in memory. AIR is added when missing.
func FromDefs(defs []BlockDef) (*BlockCatalog, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	var c BlockCatalog
	if err := indexBlocks(raw, defs, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *BlockCatalog) Def(id string) (BlockDef, bool) {
	if c == nil {
		return BlockDef{}, false
	}
	d, ok := c.Defs[id]
	return d, ok
}

// Animatable reports whether a block of the given id may become an animated block.
// Air and unknown ids never are.
func (c *BlockCatalog) Animatable(id string) bool {
	if id == "" || id == Air {
		return false
	}
	d, ok := c.Def(id)
	return ok && d.Animatable
}

func (c *BlockCatalog) Rotatable(id string) bool {
	d, ok := c.Def(id)
	return ok && d.Rotatable
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	if err := indexBlocks(raw, defs, out); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	return nil
}

func indexBlocks(raw []byte, defs []BlockDef, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)
	out.Defs = map[string]BlockDef{Air: {ID: Air}}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id != Air {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	// AIR is always palette id 0.
	ids = append([]string{Air}, ids...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}
