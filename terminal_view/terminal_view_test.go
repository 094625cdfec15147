package terminal_view

import (
	"context"
	"strings"
	"testing"
	"time"

	"subgrid/grid_world"
	"subgrid/session"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)
	return screen
}

func line(screen tcell.Screen, y, width int) string {
	var sb strings.Builder
	for x := 0; x < width; x++ {
		mainc, _, _, _ := screen.GetContent(x, y)
		sb.WriteRune(mainc)
	}
	return strings.TrimRight(sb.String(), " ")
}

func testSnapshot() *session.Snapshot {
	return &session.Snapshot{
		Step: 1,
		Size: 2,
		Pose: grid_world.Index{Row: 0, Col: 1},
		Path: []grid_world.Index{{Row: 1, Col: 1}, {Row: 0, Col: 1}},
		Weights: [][]float64{
			{0.25, 1},
			{grid_world.MinWeight, 1},
		},
		Visited: [][]bool{
			{false, true},
			{false, true},
		},
		Coverage:   2.0 / 3,
		PathLength: 1750,
	}
}

func TestDraw(t *testing.T) {
	screen := newScreen(t)
	view := New(screen, make(chan struct{}, 1))

	view.Draw(testSnapshot())

	assert.Equal(t, " 0.25  1.00", line(screen, 0, 80))
	assert.Equal(t, "  ###  1.00", line(screen, 1, 80))
	assert.Equal(t, "step 1  pose [0, 1]  coverage 66.7%  path 1750  running", line(screen, 3, 80))
	assert.Equal(t, help, line(screen, 4, 80))

	_, _, poseStyle, _ := screen.GetContent(cellWidth+1, 0)
	assert.Equal(t, stylePose, poseStyle)
	_, _, visitedStyle, _ := screen.GetContent(cellWidth+1, 1)
	assert.Equal(t, styleVisited, visitedStyle)
}

func TestKeys(t *testing.T) {
	screen := newScreen(t)
	triggers := make(chan struct{}, 1)
	view := New(screen, triggers)

	for _, ev := range []*tcell.EventKey{
		tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone),
	} {
		assert.True(t, view.handleEvent(ev))
		select {
		case <-triggers:
		default:
			t.Fatalf("no trigger for key %v", ev.Name())
		}
	}

	// A press while one is pending is dropped rather than blocking.
	assert.True(t, view.handleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)))
	assert.True(t, view.handleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)))
	assert.Len(t, triggers, 1)

	assert.False(t, view.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.False(t, view.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.False(t, view.handleEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)))
}

func TestRun(t *testing.T) {
	screen := newScreen(t)
	view := New(screen, make(chan struct{}, 1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := make(chan *session.Snapshot)
	errs := make(chan error, 1)
	go func() { errs <- view.Run(ctx, snapshots) }()

	snapshots <- testSnapshot()
	cancel()

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, " 0.25  1.00", line(screen, 0, 80))
}
