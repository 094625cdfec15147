package weight_maps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgrid/grid_world"
)

func TestBuiltinMapsFitDefaultGrid(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			weights, err := Lookup(name)
			require.NoError(t, err)

			grid, err := grid_world.New(500, grid_world.WithWeights(weights))
			require.NoError(t, err)
			assert.Equal(t, len(weights), grid.Size)
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	weights, err := Lookup("map1")
	require.NoError(t, err)
	weights[0][0] = 42

	again, err := Lookup("map1")
	require.NoError(t, err)
	assert.Equal(t, 0.10, again[0][0])
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nowhere")
	assert.ErrorIs(t, err, ErrUnknownMap)
}

func TestFromYaml(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "valid.yaml")
		doc := "name: tiny\nweights:\n  - [0.1, 0.2, 0.3]\n  - [0.4, -1, 0.6]\n  - [0.7, 0.8, 0.9]\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		wm, err := FromYaml(path)
		require.NoError(t, err)
		assert.Equal(t, "tiny", wm.Name)
		assert.Equal(t, -1.0, wm.Weights[1][1])

		grid, err := grid_world.New(1200, grid_world.WithWeights(wm.Weights))
		require.NoError(t, err)
		assert.Equal(t, -1.0, grid.CurrentCell().Weight)
	})

	t.Run("ragged", func(t *testing.T) {
		path := filepath.Join(dir, "ragged.yaml")
		doc := "name: bad\nweights:\n  - [0.1, 0.2]\n  - [0.4]\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		_, err := FromYaml(path)
		assert.ErrorIs(t, err, ErrMalformedMap)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Parse([]byte("name: empty\n"))
		assert.ErrorIs(t, err, ErrMalformedMap)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := FromYaml(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
