// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"fmt"
	"math"

	"subgrid/grid_world"
	"subgrid/session"
)

// Cell is a flattened grid cell whose fields are immediately usable as view
// parameters. Row 0 is the top row, as in the console printout, which is also
// the svg y-axis orientation.
type Cell struct {
	Row, Col int
	Weight   float64
	Visited  bool
	Pose     bool
	Blocked  bool
	Fill     string
}

// Frame is the view-model of one snapshot: the cells plus the run-level data
// that no single cell carries.
type Frame struct {
	Cells [][]Cell
	// Path is the visit order as [row, col] pairs.
	Path   []grid_world.Index
	Status string
}

// Convert transforms a session snapshot into a Frame for consumption by the views.
func Convert(snap *session.Snapshot) Frame {
	cells := make([][]Cell, snap.Size)
	for row := range cells {
		cells[row] = make([]Cell, snap.Size)
		for col := range cells[row] {
			cell := Cell{
				Row:     row,
				Col:     col,
				Weight:  snap.Weights[row][col],
				Visited: snap.Visited[row][col],
				Pose:    snap.Pose.Row == row && snap.Pose.Col == col,
			}
			cell.Blocked = !cell.Visited && cell.Weight <= grid_world.MinWeight
			cell.Fill = getFill(cell)
			cells[row][col] = cell
		}
	}

	return Frame{
		Cells:  cells,
		Path:   snap.Path,
		Status: status(snap),
	}
}

func status(snap *session.Snapshot) string {
	state := "running"
	if snap.Complete {
		state = "complete"
	}
	return fmt.Sprintf("step %d | coverage %.1f%% | path %.0f | %s",
		snap.Step, snap.Coverage*100, snap.PathLength, state)
}

// getFill shades unvisited cells from white (weight 0) to green (weight 1 and above).
func getFill(cell Cell) string {
	switch {
	case cell.Pose:
		return "gold"
	case cell.Visited:
		return "lightblue"
	case cell.Blocked:
		return "dimgray"
	}
	w := math.Max(0, math.Min(cell.Weight, 1))
	shade := int(255 - 135*w)
	return fmt.Sprintf("rgb(%d,255,%d)", shade, shade)
}
