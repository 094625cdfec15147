// Package grid_world implements a single-agent coverage planner over a fixed
// square grid. Starting at the center cell, the agent greedily moves to the
// heaviest unvisited neighbor, falls back to the nearest unvisited cell anywhere
// in the grid when boxed in, and reports completion when nothing is left.
//
// A Grid is owned by a single goroutine; none of its methods are safe for
// concurrent use.
package grid_world

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	// MapSize is the physical extent of the map, in world units (cm).
	MapSize = 3500.0
	// MinWeight is the weight floor: cells at or below it are unreachable.
	MinWeight = -1.0
	// VisitedWeight is pinned on a cell the moment the planner selects it.
	VisitedWeight = 1.0
	// DefaultJitter is the upper bound of the neighbor weight increment.
	DefaultJitter = 0.1
)

// ErrInvalidConfiguration is returned by New for a cell size outside (0, MapSize]
// or a weight table whose dimensions do not match the grid.
var ErrInvalidConfiguration = errors.New("grid_world: invalid configuration")

// Source supplies uniform samples in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Grid owns every cell, the agent pose, and the path of visited indices.
type Grid struct {
	CellSize float64
	Size     int
	Origin   int

	cells  [][]Cell
	pose   Index
	path   []Index
	src    Source
	jitter float64
	done   bool
}

type options struct {
	weights [][]float64
	src     Source
	jitter  float64
}

// Option configures a Grid at construction.
type Option func(*options)

// WithWeights initializes cell weights from a predefined table instead of the
// random source. The table must be Size x Size.
func WithWeights(weights [][]float64) Option {
	return func(opts *options) { opts.weights = weights }
}

// WithSource sets the random source used for initial weights and neighbor updates.
func WithSource(src Source) Option {
	return func(opts *options) { opts.src = src }
}

// WithJitter sets the upper bound of the increment applied by UpdateNeighborWeights.
func WithJitter(jitter float64) Option {
	return func(opts *options) { opts.jitter = jitter }
}

// GridSize returns the number of cells per side for the given cell size.
func GridSize(cellSize float64) int {
	return int(math.Ceil(MapSize / cellSize))
}

// New builds a grid of ceil(MapSize/cellSize) cells per side with the agent
// parked on the origin cell. The origin cell is marked visited but keeps its
// initial weight.
func New(cellSize float64, opts ...Option) (*Grid, error) {
	if math.IsNaN(cellSize) || cellSize <= 0 || cellSize > MapSize {
		return nil, fmt.Errorf("%w: cell size %v must be in (0, %v]", ErrInvalidConfiguration, cellSize, MapSize)
	}

	gridOpts := options{jitter: DefaultJitter}
	for _, opt := range opts {
		opt(&gridOpts)
	}
	if gridOpts.jitter < 0 {
		return nil, fmt.Errorf("%w: negative jitter %v", ErrInvalidConfiguration, gridOpts.jitter)
	}
	if gridOpts.src == nil {
		gridOpts.src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	size := GridSize(cellSize)
	if gridOpts.weights != nil {
		if err := checkDims(gridOpts.weights, size); err != nil {
			return nil, err
		}
	}

	origin := size / 2
	grid := &Grid{
		CellSize: cellSize,
		Size:     size,
		Origin:   origin,
		src:      gridOpts.src,
		jitter:   gridOpts.jitter,
	}

	grid.cells = make([][]Cell, size)
	for row := 0; row < size; row++ {
		grid.cells[row] = make([]Cell, size)
		for col := 0; col < size; col++ {
			center := Point{
				X: float64(origin-row) * cellSize,
				Y: float64(origin-col) * cellSize,
			}
			var weight float64
			if gridOpts.weights != nil {
				weight = gridOpts.weights[row][col]
			} else {
				weight = grid.src.Float64()
			}
			grid.cells[row][col] = newCell(row, col, center, cellSize, weight)
		}
	}

	grid.pose = Index{Row: origin, Col: origin}
	grid.path = []Index{grid.pose}
	grid.cells[origin][origin].IsVisited = true

	return grid, nil
}

func checkDims(weights [][]float64, size int) error {
	if len(weights) != size {
		return fmt.Errorf("%w: weight table has %d rows, want %d", ErrInvalidConfiguration, len(weights), size)
	}
	for row := range weights {
		if len(weights[row]) != size {
			return fmt.Errorf("%w: weight table row %d has %d entries, want %d",
				ErrInvalidConfiguration, row, len(weights[row]), size)
		}
	}
	return nil
}

// InBounds reports whether (row, col) lies within the grid.
func (grid *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < grid.Size && col >= 0 && col < grid.Size
}

// Cell returns a copy of the cell at (row, col).
func (grid *Grid) Cell(row, col int) (Cell, bool) {
	if !grid.InBounds(row, col) {
		return Cell{}, false
	}
	return grid.cells[row][col], true
}

// CurrentCell returns a copy of the cell under the agent.
func (grid *Grid) CurrentCell() Cell {
	return grid.cells[grid.pose.Row][grid.pose.Col]
}

// Pose returns the agent's current index.
func (grid *Grid) Pose() Index {
	return grid.pose
}

// Path returns a copy of the visited indices, starting with the origin.
func (grid *Grid) Path() []Index {
	path := make([]Index, len(grid.path))
	copy(path, grid.path)
	return path
}

// Done reports whether Advance has returned Complete.
func (grid *Grid) Done() bool {
	return grid.done
}

// WeightsSnapshot returns a deep copy of the weight table, indexed [row][col].
func (grid *Grid) WeightsSnapshot() [][]float64 {
	weights := make([][]float64, grid.Size)
	for row := range grid.cells {
		weights[row] = make([]float64, grid.Size)
		for col := range grid.cells[row] {
			weights[row][col] = grid.cells[row][col].Weight
		}
	}
	return weights
}

// VisitedSnapshot returns a deep copy of the visited flags, indexed [row][col].
func (grid *Grid) VisitedSnapshot() [][]bool {
	visited := make([][]bool, grid.Size)
	for row := range grid.cells {
		visited[row] = make([]bool, grid.Size)
		for col := range grid.cells[row] {
			visited[row][col] = grid.cells[row][col].IsVisited
		}
	}
	return visited
}

// Visit calls fn on every cell in row-major order. fn must not retain the pointer.
func (grid *Grid) Visit(fn func(cell *Cell)) {
	for row := range grid.cells {
		for col := range grid.cells[row] {
			fn(&grid.cells[row][col])
		}
	}
}

// Coverage returns the fraction of reachable cells that have been visited.
func (grid *Grid) Coverage() float64 {
	reachable, visited := 0, 0
	grid.Visit(func(cell *Cell) {
		if !cell.isReachable() {
			return
		}
		reachable++
		if cell.IsVisited {
			visited++
		}
	})
	if reachable == 0 {
		return 1.0
	}
	return float64(visited) / float64(reachable)
}

// PathLength returns the length of the path through cell centers, in world units.
func (grid *Grid) PathLength() (length float64) {
	for i := 1; i < len(grid.path); i++ {
		from := grid.cells[grid.path[i-1].Row][grid.path[i-1].Col].Center
		to := grid.cells[grid.path[i].Row][grid.path[i].Col].Center
		length += math.Hypot(to.X-from.X, to.Y-from.Y)
	}
	return
}
