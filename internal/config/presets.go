package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

// Preset is a named list of taxon identifiers.
type Preset struct {
	Description string   `yaml:"description"`
	Taxa        []string `yaml:"taxa"`
}

// Catalog maps preset names to presets.
type Catalog map[string]Preset

type catalogFile struct {
	Presets Catalog `yaml:"presets"`
}

// ParseCatalog decodes a preset catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	// Names are matched case-insensitively, so they are stored lowercased.
	c := make(Catalog, len(f.Presets))
	for name, p := range f.Presets {
		if len(p.Taxa) == 0 {
			return nil, fmt.Errorf("preset %q has no taxa", name)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := c[key]; dup {
			return nil, fmt.Errorf("preset %q is defined more than once", key)
		}
		c[key] = p
	}
	return c, nil
}

// DefaultCatalog returns the built-in presets.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultPresets)
	if err != nil {
		panic(fmt.Sprintf("embedded presets are invalid: %v", err))
	}
	return c
}

// LoadCatalog returns the built-in presets overlaid with the presets in path.
// A missing file is not an error.
func LoadCatalog(path string) (Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets %s: %w", path, err)
	}

	user, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for name, p := range user {
		c[name] = p
	}
	return c, nil
}

// Expand returns the taxa of the named preset.
func (c Catalog) Expand(name string) ([]string, error) {
	p, ok := c[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(c.Names(), ", "))
	}
	return append([]string(nil), p.Taxa...), nil
}

// Names returns the preset names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
