package grid_world

// Point is a position in world units.
type Point struct {
	X, Y float64
}

// Borders holds the four corners of a cell's bounding square, in the same
// order the plotting code walks them: (x1,y1) is the +x/+y corner and the
// remaining corners follow clockwise.
type Borders struct {
	X1, Y1 float64
	X2, Y2 float64
	X3, Y3 float64
	X4, Y4 float64
}

// Index is a (row, col) position in the grid.
type Index struct {
	Row, Col int
}

// Cell is a single square of the coverage grid. Cells are owned by a Grid and
// only mutated through it; IndX and IndY never change after construction.
type Cell struct {
	Center    Point
	Borders   Borders
	IsVisited bool
	Weight    float64
	IndX      int
	IndY      int
}

func newCell(row, col int, center Point, cellSize, weight float64) Cell {
	gap := cellSize / 2
	return Cell{
		Center: center,
		Borders: Borders{
			X1: center.X + gap, Y1: center.Y + gap,
			X2: center.X + gap, Y2: center.Y - gap,
			X3: center.X - gap, Y3: center.Y - gap,
			X4: center.X - gap, Y4: center.Y + gap,
		},
		Weight: weight,
		IndX:   row,
		IndY:   col,
	}
}

// Index returns the cell's (row, col) position.
func (c *Cell) Index() Index {
	return Index{Row: c.IndX, Col: c.IndY}
}

// A reachable cell is one the planner may still select, or already has.
func (c *Cell) isReachable() bool {
	return c.IsVisited || c.Weight > MinWeight
}

func (c *Cell) visit() {
	c.IsVisited = true
	c.Weight = VisitedWeight
}
