package grid_world

import (
	"math"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAdvance(t *testing.T) {
	Convey("When advancing a single-cell grid", t, func() {
		grid, err := New(MapSize)
		So(err, ShouldBeNil)
		So(grid.Size, ShouldEqual, 1)
		So(grid.CurrentCell().IsVisited, ShouldBeTrue)

		result := grid.Advance()
		So(result.Outcome, ShouldEqual, Complete)
		So(grid.Path(), ShouldResemble, []Index{{0, 0}})
		So(grid.Done(), ShouldBeTrue)
	})

	Convey("When a 3x3 grid has a unique heaviest neighbor", t, func() {
		weights := zeros(3)
		weights[0][0] = 0.9
		grid, _ := New(1200, WithWeights(weights))

		result := grid.Advance()
		So(result, ShouldResemble, StepResult{Outcome: Advanced, Pose: Index{0, 0}})
		So(grid.Pose(), ShouldResemble, Index{0, 0})
		So(grid.Path(), ShouldResemble, []Index{{1, 1}, {0, 0}})

		cell, _ := grid.Cell(0, 0)
		So(cell.IsVisited, ShouldBeTrue)
		So(cell.Weight, ShouldEqual, VisitedWeight)
	})

	Convey("When neighbors tie the first one enumerated wins", t, func() {
		weights := zeros(3)
		weights[1][2] = 0.5
		weights[2][0] = 0.5
		grid, _ := New(1200, WithWeights(weights))
		So(grid.Advance().Pose, ShouldResemble, Index{1, 2})
	})

	Convey("When every neighbor is unreachable", t, func() {
		weights := zeros(3)
		for row := range weights {
			for col := range weights[row] {
				weights[row][col] = MinWeight
			}
		}
		grid, _ := New(1200, WithWeights(weights))

		Convey("Coverage is complete and the path is unchanged", func() {
			So(grid.Advance().Outcome, ShouldEqual, Complete)
			So(grid.Path(), ShouldResemble, []Index{{1, 1}})
			So(grid.Pose(), ShouldResemble, Index{1, 1})
		})
	})

	Convey("When all 8 neighbors of the center are already visited", t, func() {
		Convey("In a 3x3 grid nothing is left and the path is unchanged", func() {
			grid, _ := New(1200, WithWeights(zeros(3)))
			grid.Visit(func(cell *Cell) { cell.visit() })

			So(grid.Advance().Outcome, ShouldEqual, Complete)
			So(grid.Path(), ShouldResemble, []Index{{1, 1}})
			So(grid.Pose(), ShouldResemble, Index{1, 1})
			So(grid.Coverage(), ShouldEqual, 1.0)
		})

		Convey("In a 5x5 grid the agent jumps past them to the outer ring", func() {
			grid, _ := New(700, WithWeights(zeros(5)))
			for _, d := range neighborOffsets {
				grid.cells[2+d[0]][2+d[1]].visit()
			}

			result := grid.Advance()
			So(result.Outcome, ShouldEqual, Advanced)
			So(result.Pose, ShouldResemble, Index{0, 2})
			So(grid.Path(), ShouldResemble, []Index{{2, 2}, {0, 2}})
		})
	})

	Convey("When a random grid is advanced until its 3x3 block is covered", t, func() {
		grid, _ := New(1200, WithSource(rand.New(rand.NewSource(3))))
		for i := 0; i < 8; i++ {
			So(grid.Advance().Outcome, ShouldEqual, Advanced)
		}
		path := grid.Path()

		So(grid.Advance().Outcome, ShouldEqual, Complete)
		So(grid.Path(), ShouldResemble, path)
		So(grid.Coverage(), ShouldEqual, 1.0)
	})

	Convey("When boxed in the agent jumps to the nearest unvisited cell", t, func() {
		// 5x5, origin (2,2), with the inner ring blocked.
		weights := zeros(5)
		for _, d := range neighborOffsets {
			weights[2+d[0]][2+d[1]] = MinWeight
		}
		weights[4][4] = 0.99
		grid, _ := New(700, WithWeights(weights))
		So(grid.Size, ShouldEqual, 5)

		Convey("Equal distances go to the first cell scanned row-major", func() {
			So(grid.Advance().Pose, ShouldResemble, Index{0, 2})
		})

		Convey("Blocked cells are never visited", func() {
			for grid.Advance().Outcome == Advanced {
			}
			So(len(grid.Path()), ShouldEqual, 25-8)
			for _, d := range neighborOffsets {
				cell, _ := grid.Cell(2+d[0], 2+d[1])
				So(cell.IsVisited, ShouldBeFalse)
				So(cell.Weight, ShouldEqual, MinWeight)
			}
		})
	})

	Convey("When running to completion on a random grid", t, func() {
		grid, _ := New(500, WithSource(rand.New(rand.NewSource(42))))
		n := grid.Size
		seen := map[Index]bool{grid.Pose(): true}
		previouslyVisited := grid.VisitedSnapshot()

		calls := 0
		for ; calls < n*n; calls++ {
			result := grid.Advance()
			if result.Outcome == Complete {
				break
			}
			// Each step lands on a cell that was unvisited at call time.
			So(previouslyVisited[result.Pose.Row][result.Pose.Col], ShouldBeFalse)
			So(seen[result.Pose], ShouldBeFalse)
			seen[result.Pose] = true
			So(grid.Pose(), ShouldResemble, result.Pose)
			So(grid.CurrentCell().Weight, ShouldEqual, VisitedWeight)
			So(len(grid.Path()), ShouldEqual, calls+2)

			visited := grid.VisitedSnapshot()
			for row := range visited {
				for col := range visited[row] {
					if previouslyVisited[row][col] {
						So(visited[row][col], ShouldBeTrue)
					}
				}
			}
			previouslyVisited = visited
			grid.UpdateNeighborWeights(nil)
		}

		So(calls, ShouldBeLessThan, n*n)
		So(grid.Done(), ShouldBeTrue)
		So(len(grid.Path()), ShouldEqual, n*n)
		grid.Visit(func(cell *Cell) {
			So(cell.IsVisited, ShouldBeTrue)
		})
	})
}

func TestUpdateNeighborWeights(t *testing.T) {
	Convey("When neighbor weights are refreshed", t, func() {
		weights := zeros(3)
		weights[2][2] = MinWeight
		grid, _ := New(1200, WithWeights(weights), WithJitter(0.1))
		grid.Advance() // (0,0)

		grid.UpdateNeighborWeights(constSource(0.5))

		Convey("Unvisited reachable neighbors grow by the jittered sample", func() {
			for _, idx := range []Index{{0, 1}, {1, 0}} {
				cell, _ := grid.Cell(idx.Row, idx.Col)
				So(cell.Weight, ShouldAlmostEqual, 0.05)
			}
		})

		Convey("Visited neighbors and distant cells are untouched", func() {
			start, _ := grid.Cell(1, 1)
			So(start.Weight, ShouldEqual, 0)
			current := grid.CurrentCell()
			So(current.Weight, ShouldEqual, VisitedWeight)
			far, _ := grid.Cell(2, 1)
			So(far.Weight, ShouldEqual, 0)
		})

		Convey("A later visit pins the weight back to the sentinel", func() {
			result := grid.Advance()
			So(result.Outcome, ShouldEqual, Advanced)
			So(grid.CurrentCell().Weight, ShouldEqual, VisitedWeight)
		})
	})

	Convey("When a neighbor sits on the weight floor", t, func() {
		weights := zeros(3)
		weights[0][0] = MinWeight
		grid, _ := New(1200, WithWeights(weights))
		grid.UpdateNeighborWeights(constSource(0.99))
		cell, _ := grid.Cell(0, 0)
		So(cell.Weight, ShouldEqual, MinWeight)
		other, _ := grid.Cell(0, 1)
		So(math.Abs(other.Weight-0.099), ShouldBeLessThan, 1e-12)
	})
}
