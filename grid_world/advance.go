package grid_world

import (
	"fmt"
	"math"
)

// Outcome tags the result of Advance.
type Outcome int

const (
	// Advanced means the agent moved to a previously unvisited cell.
	Advanced Outcome = iota
	// Complete means no reachable unvisited cell remains. It is normal termination.
	Complete
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// StepResult is the outcome of a single Advance. Pose is only meaningful when
// Outcome is Advanced.
type StepResult struct {
	Outcome Outcome
	Pose    Index
}

// Neighbor offsets, row-offset major, excluding (0,0). Enumeration order decides ties.
var neighborOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// unvisitedNeighbors returns the in-bounds, unvisited 8-neighbors of the pose.
func (grid *Grid) unvisitedNeighbors() (neighbors []*Cell) {
	for _, d := range neighborOffsets {
		row, col := grid.pose.Row+d[0], grid.pose.Col+d[1]
		if !grid.InBounds(row, col) {
			continue
		}
		if cell := &grid.cells[row][col]; !cell.IsVisited {
			neighbors = append(neighbors, cell)
		}
	}
	return
}

// UpdateNeighborWeights bumps every unvisited, reachable neighbor of the pose
// by a sample in [0, jitter). Visited and unreachable neighbors are left alone.
// A nil src falls back to the grid's own source.
func (grid *Grid) UpdateNeighborWeights(src Source) {
	if src == nil {
		src = grid.src
	}
	for _, cell := range grid.unvisitedNeighbors() {
		if cell.Weight > MinWeight {
			cell.Weight += src.Float64() * grid.jitter
		}
	}
}

// Advance moves the agent one cell and appends it to the path. The heaviest
// unvisited neighbor wins; when none is reachable the nearest unvisited cell
// in the whole grid is taken instead. Complete is returned, with the path
// untouched, once no reachable unvisited cell remains.
func (grid *Grid) Advance() StepResult {
	next := grid.bestNeighbor()
	if next == nil {
		next = grid.nearestUnvisited()
	}
	if next == nil {
		grid.done = true
		return StepResult{Outcome: Complete, Pose: grid.pose}
	}

	next.visit()
	grid.pose = next.Index()
	grid.path = append(grid.path, grid.pose)
	return StepResult{Outcome: Advanced, Pose: grid.pose}
}

// bestNeighbor returns the unvisited neighbor with strictly greatest weight
// above the floor, or nil. The first neighbor enumerated wins a tie.
func (grid *Grid) bestNeighbor() (best *Cell) {
	maxWeight := MinWeight
	for _, cell := range grid.unvisitedNeighbors() {
		if cell.Weight > maxWeight {
			maxWeight = cell.Weight
			best = cell
		}
	}
	return
}

// nearestUnvisited scans the grid row-major for the reachable unvisited cell
// closest to the pose in index space. The first cell scanned wins a tie.
func (grid *Grid) nearestUnvisited() (nearest *Cell) {
	minDistance := math.Inf(1)
	for row := range grid.cells {
		for col := range grid.cells[row] {
			cell := &grid.cells[row][col]
			if cell.IsVisited || cell.Weight <= MinWeight {
				continue
			}
			if distance := grid.distance(row, col); distance < minDistance {
				minDistance = distance
				nearest = cell
			}
		}
	}
	return
}

func (grid *Grid) distance(row, col int) float64 {
	return math.Hypot(float64(grid.pose.Row-row), float64(grid.pose.Col-col))
}
