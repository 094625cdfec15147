/*
Subgrid plans single-agent coverage of a square map. The map is split into a grid of
cells, each carrying a weight; the agent repeatedly steps to the heaviest reachable
unvisited neighbor, or jumps to the nearest unvisited cell when boxed in, until every
reachable cell has been visited. Steps are driven by triggers, from a key, a browser
click, or a timer, and each step is published to a renderer: a live svg page, the
terminal, or a console printout once the run completes.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"subgrid/config"
	"subgrid/grid_world"
	"subgrid/server"
	"subgrid/session"
	"subgrid/terminal_view"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "path to a coverage config document; defaults are used when empty")
	view       = flag.String("view", "web", "renderer: web, terminal, or console")
	dbg        = flag.Bool("debug", false, "log every pose")
	host       = flag.String("host", "", "The host ip, overrides the config")
	port       = flag.String("port", "", "The host port, overrides the config")
)

func main() {
	flag.Parse()
	if err := config.LoadEnv(); err != nil {
		log.Printf("[SUBGRID] [INFO] .env file not found or could not be loaded: %v", err)
	}
	if err := runApp(); err != nil && !errors.Is(err, terminal_view.ErrQuit) {
		log.Fatal(err)
	}
}

func loadConfig() (cfg *config.CoverageConfig, err error) {
	if *configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.FromYaml(*configPath); err != nil {
		return
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	return
}

func runApp() (err error) {
	var cfg *config.CoverageConfig
	if cfg, err = loadConfig(); err != nil {
		return
	}

	var sess *session.Session
	if sess, err = session.FromConfig(cfg); err != nil {
		return
	}
	sess.Verbose = *dbg
	log.Printf("[SUBGRID] [INFO] run %s: %dx%d grid, cell size %v", sess.ID(), sess.Grid().Size, sess.Grid().Size, cfg.CellSize)

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	switch *view {
	case "console":
		return runConsole(appCtx, cfg, sess)
	case "web":
		return runWeb(appCtx, cfg, sess)
	case "terminal":
		return runTerminal(appCtx, cfg, sess)
	}
	return fmt.Errorf("unknown view %q", *view)
}

// runConsole steps to completion without a renderer and prints the result.
func runConsole(ctx context.Context, cfg *config.CoverageConfig, sess *session.Session) error {
	runCtx, cancel, err := cfg.WithRunDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err = sess.RunToCompletion(runCtx); err != nil {
		return err
	}
	grid := sess.Grid()
	grid_world.ShowWeights(os.Stdout, grid)
	fmt.Println()
	grid_world.ShowGrid(os.Stdout, grid)
	fmt.Println()
	grid_world.ShowPath(os.Stdout, grid)
	return nil
}

// triggers merges the manual channel with the timer, if auto-stepping is configured.
func triggers(
	done <-chan struct{},
	cfg *config.CoverageConfig,
	manual <-chan struct{},
) (<-chan struct{}, error) {
	interval, err := cfg.AutoStepInterval()
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		return manual, nil
	}
	return session.MergeTriggers(done, manual, session.AutoTriggers(done, interval)), nil
}

// runSession runs sess until it completes or the run deadline passes. The
// deadline and shutdown are not errors: the renderer keeps the final state.
func runSession(
	ctx context.Context,
	cfg *config.CoverageConfig,
	sess *session.Session,
	manual <-chan struct{},
	snapshots chan *session.Snapshot,
) error {
	runCtx, cancel, err := cfg.WithRunDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	steps, err := triggers(runCtx.Done(), cfg, manual)
	if err != nil {
		return err
	}

	err = sess.Run(runCtx, steps, session.Publisher(snapshots))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("[SUBGRID] [INFO] run %s: deadline reached after %d steps", sess.ID(), sess.Stats().Steps())
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func runWeb(ctx context.Context, cfg *config.CoverageConfig, sess *session.Session) error {
	// Unbuffered, so an accepted advance is one the session received.
	manual := make(chan struct{})
	snapshots := make(chan *session.Snapshot, 1)

	group, groupCtx := errgroup.WithContext(ctx)
	srv, err := server.NewServer(groupCtx, cfg.Addr(), sess, snapshots, manual)
	if err != nil {
		return err
	}

	group.Go(func() error {
		return runSession(groupCtx, cfg, sess, manual, snapshots)
	})
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	return group.Wait()
}

func runTerminal(ctx context.Context, cfg *config.CoverageConfig, sess *session.Session) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err = screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	// Log lines would scribble over the screen.
	log.SetOutput(io.Discard)

	manual := make(chan struct{}, 1)
	snapshots := make(chan *session.Snapshot, 1)
	termView := terminal_view.New(screen, manual)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runSession(groupCtx, cfg, sess, manual, snapshots)
	})
	group.Go(func() error {
		return termView.Run(groupCtx, snapshots)
	})
	return group.Wait()
}
