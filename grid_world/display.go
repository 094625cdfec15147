package grid_world

import (
	"fmt"
	"io"
)

// Cell markers for console display.
const (
	POSE      = '@'
	VISITED   = 'x'
	UNVISITED = 'o'
	BLOCKED   = 'W'
)

// marker returns the console rune for the cell at (row, col).
func (grid *Grid) marker(row, col int) rune {
	cell := &grid.cells[row][col]
	switch {
	case grid.pose.Row == row && grid.pose.Col == col:
		return POSE
	case cell.IsVisited:
		return VISITED
	case cell.Weight <= MinWeight:
		return BLOCKED
	}
	return UNVISITED
}

// ShowGrid prints one marker per cell, for visual reference.
func ShowGrid(w io.Writer, grid *Grid) {
	for row := range grid.cells {
		for col := range grid.cells[row] {
			fmt.Fprintf(w, "%c ", grid.marker(row, col))
		}
		fmt.Fprintln(w, "")
	}
}

// ShowWeights prints the weight table rounded to two places, with the pose bracketed.
func ShowWeights(w io.Writer, grid *Grid) {
	fmt.Fprintln(w, "Weights:")
	for row := range grid.cells {
		fmt.Fprint(w, " ")
		for col, cell := range grid.cells[row] {
			if grid.pose.Row == row && grid.pose.Col == col {
				fmt.Fprintf(w, "[%5.2f] ", cell.Weight)
				continue
			}
			fmt.Fprintf(w, " %5.2f  ", cell.Weight)
		}
		fmt.Fprintln(w, "")
	}
	fmt.Fprintf(w, "Coverage: %.2f%%\n", grid.Coverage()*100)
}

// ShowPath prints the visited indices in order, and the path length in world units.
func ShowPath(w io.Writer, grid *Grid) {
	fmt.Fprintf(w, "Path (%d cells, %.0f units):", len(grid.path), grid.PathLength())
	for _, index := range grid.path {
		fmt.Fprintf(w, " [%d, %d]", index.Row, index.Col)
	}
	fmt.Fprintln(w, "")
}
