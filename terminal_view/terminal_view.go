// Package terminal_view renders coverage snapshots in the terminal and turns
// key presses into step triggers.
package terminal_view

import (
	"context"
	"errors"
	"fmt"

	"subgrid/grid_world"
	"subgrid/session"

	"github.com/gdamore/tcell/v2"
)

// ErrQuit is returned by Run when the user quits.
var ErrQuit = errors.New("terminal_view: quit")

// Width of one rendered cell, e.g. " 0.42 ".
const cellWidth = 6

const help = "space/n/enter: advance   q/esc: quit"

var (
	styleDefault = tcell.StyleDefault
	stylePose    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Reverse(true)
	styleVisited = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleBlocked = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

// View draws onto a tcell screen, which it does not own: the caller Inits and Finis it.
type View struct {
	screen   tcell.Screen
	triggers chan<- struct{}
	last     *session.Snapshot
}

func New(screen tcell.Screen, triggers chan<- struct{}) *View {
	return &View{
		screen:   screen,
		triggers: triggers,
	}
}

// Run draws each snapshot as it arrives and handles key events until ctx is
// cancelled (nil), the user quits (ErrQuit), or snapshots is closed (nil).
func (view *View) Run(ctx context.Context, snapshots <-chan *session.Snapshot) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			// PollEvent returns nil once the screen is finalized.
			ev := view.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			view.Draw(snap)
		case ev := <-events:
			if !view.handleEvent(ev) {
				return ErrQuit
			}
		}
	}
}

// handleEvent returns false when the user asks to quit.
func (view *View) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyEnter:
			view.advance()
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ', 'n':
				view.advance()
			}
		}
	case *tcell.EventResize:
		view.screen.Sync()
		if view.last != nil {
			view.Draw(view.last)
		}
	}
	return true
}

// advance requests a step without blocking the ui; a press while the previous
// one is still pending is dropped.
func (view *View) advance() {
	select {
	case view.triggers <- struct{}{}:
	default:
	}
}

// Draw renders the weights table, with visited cells, blocked cells, and the
// pose styled, followed by a status line and the key help.
func (view *View) Draw(snap *session.Snapshot) {
	view.last = snap
	view.screen.Clear()

	for row := 0; row < snap.Size; row++ {
		for col := 0; col < snap.Size; col++ {
			text, style := cellText(snap, row, col)
			view.drawText(col*cellWidth, row, text, style)
		}
	}

	state := "running"
	if snap.Complete {
		state = "complete"
	}
	status := fmt.Sprintf("step %d  pose [%d, %d]  coverage %.1f%%  path %.0f  %s",
		snap.Step, snap.Pose.Row, snap.Pose.Col, snap.Coverage*100, snap.PathLength, state)
	view.drawText(0, snap.Size+1, status, styleStatus)
	view.drawText(0, snap.Size+2, help, styleDefault)

	view.screen.Show()
}

func cellText(snap *session.Snapshot, row, col int) (string, tcell.Style) {
	weight := snap.Weights[row][col]
	text := fmt.Sprintf("%5.2f ", weight)
	switch {
	case snap.Pose.Row == row && snap.Pose.Col == col:
		return text, stylePose
	case snap.Visited[row][col]:
		return text, styleVisited
	case weight <= grid_world.MinWeight:
		return "  ### ", styleBlocked
	}
	return text, styleDefault
}

func (view *View) drawText(x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		view.screen.SetContent(x+i, y, r, nil, style)
	}
}
