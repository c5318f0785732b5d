package structure

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Structures []Snapshot `yaml:"structures"`
}

// LoadFile reads the seed structures from a structures.yaml file.
func LoadFile(path string) ([]Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("structures.yaml: %w", err)
	}
	seen := map[string]bool{}
	for _, s := range cfg.Structures {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("structures.yaml: %w", err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("structures.yaml: duplicate id %s", s.ID)
		}
		seen[s.ID] = true
	}
	return cfg.Structures, nil
}
