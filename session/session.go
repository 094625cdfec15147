// Package session drives a coverage grid one step per trigger and publishes
// snapshots of its state to renderers. The grid itself is touched only by the
// goroutine running Run; everything handed out is a copy.
package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"subgrid/atomic_float"
	"subgrid/config"
	"subgrid/grid_world"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"
)

// Snapshot is a self-contained copy of the planner state after a step.
// Published snapshots are never mutated, so they may be shared between readers.
type Snapshot struct {
	RunID      string
	Step       int
	Size       int
	CellSize   float64
	Pose       grid_world.Index
	Path       []grid_world.Index
	Weights    [][]float64
	Visited    [][]bool
	Coverage   float64
	PathLength float64
	Complete   bool
}

// Stats are the run counters that other goroutines may read while Run is stepping.
type Stats struct {
	steps      atomic.Int64
	complete   atomic.Bool
	coverage   *atomic_float.AtomicFloat64
	pathLength *atomic_float.AtomicFloat64
}

func (st *Stats) Steps() int64        { return st.steps.Load() }
func (st *Stats) Complete() bool      { return st.complete.Load() }
func (st *Stats) Coverage() float64   { return st.coverage.AtomicRead() }
func (st *Stats) PathLength() float64 { return st.pathLength.AtomicRead() }

// Session owns one coverage run.
type Session struct {
	// Verbose logs every pose and the final path.
	Verbose bool

	id     uuid.UUID
	grid   *grid_world.Grid
	src    grid_world.Source
	stats  *Stats
	steps  int
	latest atomic.Pointer[Snapshot]

	stopped  chan struct{}
	stopOnce sync.Once
}

// New wraps a grid. src is used for neighbor weight updates; nil uses the grid's own.
func New(grid *grid_world.Grid, src grid_world.Source) *Session {
	s := &Session{
		id:   uuid.New(),
		grid: grid,
		src:  src,
		stats: &Stats{
			coverage:   atomic_float.NewAtomicFloat64(grid.Coverage()),
			pathLength: atomic_float.NewAtomicFloat64(0),
		},
		stopped: make(chan struct{}),
	}
	s.latest.Store(s.snapshot())
	return s
}

// FromConfig builds the grid described by cfg and wraps it in a session.
func FromConfig(cfg *config.CoverageConfig) (*Session, error) {
	weights, err := cfg.Weights()
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	src := rand.New(rand.NewSource(seed))

	opts := []grid_world.Option{
		grid_world.WithSource(src),
		grid_world.WithJitter(cfg.Jitter),
	}
	if weights != nil {
		opts = append(opts, grid_world.WithWeights(weights))
	}
	grid, err := grid_world.New(cfg.CellSize, opts...)
	if err != nil {
		return nil, err
	}
	return New(grid, src), nil
}

// ID returns the run id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Stats returns the concurrently readable counters.
func (s *Session) Stats() *Stats {
	return s.stats
}

// Stopped returns a channel that is closed once Run has returned, for whatever
// reason. Triggers sent after that are never consumed.
func (s *Session) Stopped() <-chan struct{} {
	return s.stopped
}

// Latest returns the most recent snapshot. Safe for concurrent use.
func (s *Session) Latest() *Snapshot {
	return s.latest.Load()
}

func (s *Session) snapshot() *Snapshot {
	return &Snapshot{
		RunID:      s.id.String(),
		Step:       s.steps,
		Size:       s.grid.Size,
		CellSize:   s.grid.CellSize,
		Pose:       s.grid.Pose(),
		Path:       s.grid.Path(),
		Weights:    s.grid.WeightsSnapshot(),
		Visited:    s.grid.VisitedSnapshot(),
		Coverage:   s.grid.Coverage(),
		PathLength: s.grid.PathLength(),
		Complete:   s.grid.Done(),
	}
}

// Step advances the grid once and refreshes the new pose's neighbors. It must
// only be called from the goroutine that owns the session.
func (s *Session) Step() grid_world.StepResult {
	from := s.grid.CurrentCell().Center
	result := s.grid.Advance()
	switch result.Outcome {
	case grid_world.Advanced:
		s.steps++
		s.grid.UpdateNeighborWeights(s.src)
		to := s.grid.CurrentCell().Center
		s.stats.steps.Store(int64(s.steps))
		s.stats.coverage.AtomicSet(s.grid.Coverage())
		s.stats.pathLength.AtomicAdd(math.Hypot(to.X-from.X, to.Y-from.Y))
		if s.Verbose {
			log.Printf("[SUBGRID] [INFO] run %s pose: [%d, %d]", s.id, result.Pose.Row, result.Pose.Col)
		}
	case grid_world.Complete:
		s.stats.complete.Store(true)
	}
	s.latest.Store(s.snapshot())
	return result
}

// Run steps once per trigger and publishes a snapshot after each step,
// starting with the initial state. It returns nil on completion or when
// triggers is closed, and ctx.Err() when ctx is cancelled first.
func (s *Session) Run(
	ctx context.Context,
	triggers <-chan struct{},
	publish func(context.Context, *Snapshot),
) error {
	defer s.stopOnce.Do(func() { close(s.stopped) })

	publish(ctx, s.Latest())
	if s.grid.Done() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-triggers:
			if !ok {
				return nil
			}
			result := s.Step()
			publish(ctx, s.Latest())
			if result.Outcome == grid_world.Complete {
				s.logComplete()
				return nil
			}
		}
	}
}

// RunToCompletion steps until the grid is covered. Every successful step
// visits a new cell, so at most Size*Size steps are taken.
func (s *Session) RunToCompletion(ctx context.Context) (steps int, err error) {
	limit := s.grid.Size * s.grid.Size
	for i := 0; i < limit; i++ {
		if err = ctx.Err(); err != nil {
			return
		}
		if s.Step().Outcome == grid_world.Complete {
			s.logComplete()
			return
		}
		steps++
	}
	return steps, fmt.Errorf("run %s: not complete after %d steps", s.id, limit)
}

func (s *Session) logComplete() {
	log.Printf("[SUBGRID] [INFO] run %s: grid is covered after %d steps, path length %.0f",
		s.id, s.steps, s.grid.PathLength())
	if s.Verbose {
		log.Printf("[SUBGRID] [INFO] run %s path: %v", s.id, s.grid.Path())
	}
}

// Grid exposes the underlying grid for single-goroutine callers, e.g. console printing
// after RunToCompletion.
func (s *Session) Grid() *grid_world.Grid {
	return s.grid
}

// Publisher returns a publish func for Run that keeps only the newest snapshot
// in ch when the reader falls behind. Snapshots are full states, so a dropped
// one loses nothing a later one does not carry.
func Publisher(ch chan *Snapshot) func(context.Context, *Snapshot) {
	return func(ctx context.Context, snap *Snapshot) {
		select {
		case ch <- snap:
			return
		default:
		}
		// Full: drop the stale snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		case <-ctx.Done():
		}
	}
}

// AutoTriggers emits a trigger every interval until done is closed.
func AutoTriggers(done <-chan struct{}, interval time.Duration) <-chan struct{} {
	triggers := make(chan struct{})
	go func() {
		defer close(triggers)
		for range channerics.NewTicker(done, interval) {
			select {
			case triggers <- struct{}{}:
			case <-done:
				return
			}
		}
	}()
	return triggers
}

// MergeTriggers fans manual and automatic triggers into one channel.
func MergeTriggers(done <-chan struct{}, triggers ...<-chan struct{}) <-chan struct{} {
	return channerics.Merge(done, triggers...)
}
