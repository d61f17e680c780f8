package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// tomlOverrides is the shape of the optional per-environment overrides
// file. It deliberately covers only values that vary between machines (sys
// inputs, font roots) rather than duplicating the whole config surface.
type tomlOverrides struct {
	Inputs    map[string]string `toml:"inputs"`
	FontPaths []string          `toml:"font_paths"`
}

// applyOverrides layers the TOML overrides file at path on top of cfg; a
// missing file is not an error.
func applyOverrides(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read overrides %s: %w", path, err)
	}

	var ov tomlOverrides
	if err := toml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("failed to parse overrides %s: %w", path, err)
	}

	for k, v := range ov.Inputs {
		cfg.Compile.Inputs[k] = v
	}
	if len(ov.FontPaths) > 0 {
		cfg.Compile.FontPaths = ov.FontPaths
	}
	return nil
}
