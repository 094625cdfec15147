// Package weight_maps holds predefined weight tables that replace the random
// initial weights of a coverage grid. A weight of -1 marks a cell the planner
// must never enter (a wall, a pillar, a no-go zone).
package weight_maps

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownMap is returned by Lookup for a name with no built-in table.
	ErrUnknownMap = errors.New("weight_maps: unknown map")
	// ErrMalformedMap is returned for an empty or non-square table.
	ErrMalformedMap = errors.New("weight_maps: map must be a non-empty square table")
)

// WeightMap is the on-disk form of a weight table.
type WeightMap struct {
	Name    string      `yaml:"name"`
	Weights [][]float64 `yaml:"weights"`
}

// The built-in tables are sized for a cell size of 500, e.g. a 7x7 grid.
var builtin = map[string][][]float64{
	// map1 is a room with a pillar north-west of the origin and a blocked
	// corridor along the south wall.
	"map1": {
		{0.10, 0.20, 0.30, 0.40, 0.30, 0.20, 0.10},
		{0.20, -1.0, -1.0, 0.50, 0.40, 0.30, 0.20},
		{0.30, -1.0, -1.0, 0.60, 0.50, 0.40, 0.30},
		{0.40, 0.50, 0.60, 0.70, 0.60, 0.50, 0.40},
		{0.30, 0.40, 0.50, 0.60, 0.50, 0.40, 0.30},
		{0.20, 0.30, 0.40, 0.50, 0.40, 0.30, 0.20},
		{-1.0, -1.0, -1.0, -1.0, 0.30, 0.20, 0.10},
	},
	// flat gives every cell the same weight, so ties decide the sweep.
	"flat": {
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
	},
	// islands splits the map in two with a blocked column, forcing a global jump.
	"islands": {
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
		{0.3, 0.3, 0.3, 0.3, -1.0, 0.3, 0.3},
	},
}

// Names returns the built-in map names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a copy of the named built-in table.
func Lookup(name string) ([][]float64, error) {
	weights, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownMap, name, Names())
	}
	return clone(weights), nil
}

// FromYaml reads a weight map file and validates its shape. Whether the
// table fits a particular grid is checked when the grid is built.
func FromYaml(path string) (*WeightMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weight map: %w", err)
	}
	return Parse(data)
}

// Parse decodes a weight map document.
func Parse(data []byte) (*WeightMap, error) {
	wm := &WeightMap{}
	if err := yaml.Unmarshal(data, wm); err != nil {
		return nil, fmt.Errorf("decode weight map: %w", err)
	}
	if err := validate(wm.Weights); err != nil {
		return nil, err
	}
	return wm, nil
}

func validate(weights [][]float64) error {
	if len(weights) == 0 {
		return ErrMalformedMap
	}
	for i, row := range weights {
		if len(row) != len(weights) {
			return fmt.Errorf("%w: row %d has %d entries, want %d", ErrMalformedMap, i, len(row), len(weights))
		}
	}
	return nil
}

func clone(weights [][]float64) [][]float64 {
	cloned := make([][]float64, len(weights))
	for i := range weights {
		cloned[i] = append([]float64(nil), weights[i]...)
	}
	return cloned
}
