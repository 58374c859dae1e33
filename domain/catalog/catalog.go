// Package catalog holds the static game tables: module effects, generator
// pools, yields, recipes and character-creation bonuses.
//
// Tables are immutable once built. A running kernel swaps whole *Tables
// values; nothing mutates one in place.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/processing"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Tables is the validated static configuration.
type Tables struct {
	Modules   map[module.Kind]module.Config
	TurnOrder []module.Kind
	Generator livestock.GeneratorConfig
	Yields    processing.Table
	Recipes   map[string]processing.Recipe
	Creation  player.CreationConfig
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Parse(defaultsYAML)
}

// DefaultYAML returns a copy of the embedded tables source.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultsYAML))
	copy(out, defaultsYAML)
	return out
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a tables document.
func Parse(data []byte) (*Tables, error) {
	f, err := decode(data)
	if err != nil {
		return nil, err
	}
	t, err := f.build()
	if err != nil {
		return nil, err
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Effects returns the effects of kind at level, or zero effects for an
// unknown kind or level.
func (t *Tables) Effects(kind module.Kind, level int) module.Effects {
	eff, err := module.LevelEffects(t.Modules[kind], level)
	if err != nil {
		return module.Effects{}
	}
	return eff
}

// Sites returns the processing view of mods.
func (t *Tables) Sites(mods map[module.Kind]module.Module) processing.Sites {
	sites := make(processing.Sites, len(mods))
	for kind, m := range mods {
		sites[kind] = processing.Site{Level: m.Level, Effects: t.Effects(kind, m.Level)}
	}
	return sites
}

// Recipe returns the recipe with key.
func (t *Tables) Recipe(key string) (processing.Recipe, bool) {
	r, ok := t.Recipes[key]
	return r, ok
}
