package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"subgrid/server/cell_views"
	"subgrid/server/fastview"
	"subgrid/server/root_view"
	"subgrid/session"

	"github.com/gorilla/mux"
)

const (
	// How long a manual advance waits for the session to accept the trigger.
	advanceWait = 2 * time.Second
	// Time allowed for in-flight requests when the server stops.
	shutdownGracePeriod = 5 * time.Second
)

// Server serves a single page to a single client over a single websocket, plus
// a small json api. The root view's ele-update channel supports one consumer,
// so a second concurrent websocket is refused.
type Server struct {
	addr      string
	session   *session.Session
	rootView  *root_view.RootView
	triggers  chan<- struct{}
	router    *mux.Router
	connected atomic.Bool
}

// NewServer builds the views over snapshots and returns a server whose manual
// advances are sent on triggers.
func NewServer(
	ctx context.Context,
	addr string,
	sess *session.Session,
	snapshots <-chan *session.Snapshot,
	triggers chan<- struct{},
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, snapshots)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	server := &Server{
		addr:     addr,
		session:  sess,
		rootView: rootView,
		triggers: triggers,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/advance", server.serveAdvance).Methods(http.MethodPost)
	router.HandleFunc("/status", server.serveStatus).Methods(http.MethodGet)
	server.router = router

	return server, nil
}

// Handler returns the routes, e.g. for httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully. Request
// contexts derive from ctx, so open websockets are closed with it.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("[SUBGRID] [INFO] serving on %s", server.addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ErrRunComplete is returned when an advance is requested after the grid is covered.
var ErrRunComplete = errors.New("run is complete")

// ErrRunStopped is returned when an advance is requested after the session stopped
// taking steps, e.g. because its run deadline passed.
var ErrRunStopped = errors.New("run has stopped")

// ErrAdvanceTimeout is returned when the session does not accept a trigger in time.
var ErrAdvanceTimeout = errors.New("session did not accept the advance")

// advance hands one trigger to the session.
func (server *Server) advance(ctx context.Context) error {
	if server.session.Stats().Complete() {
		return ErrRunComplete
	}
	// A buffered trigger channel would accept a send nobody will ever receive.
	select {
	case <-server.session.Stopped():
		return ErrRunStopped
	default:
	}

	timer := time.NewTimer(advanceWait)
	defer timer.Stop()
	select {
	case <-server.session.Stopped():
		return ErrRunStopped
	case server.triggers <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrAdvanceTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onMessage handles text messages from the page's websocket.
func (server *Server) onMessage(ctx context.Context) func(string) {
	return func(msg string) {
		if msg != root_view.AdvanceMessage {
			log.Printf("[SUBGRID] [INFO] ignoring websocket message %q", msg)
			return
		}
		if err := server.advance(ctx); err != nil {
			log.Printf("[SUBGRID] [INFO] advance: %v", err)
		}
	}
}

// serveWebsocket publishes view updates to the client and accepts advance requests.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if !server.connected.CompareAndSwap(false, true) {
		http.Error(w, "another client is connected", http.StatusConflict)
		return
	}
	defer server.connected.Store(false)

	cli, err := fastview.NewClient(server.rootView.Updates(), server.onMessage(r.Context()), w, r)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	if err = cli.Sync(); err != nil {
		log.Printf("[SUBGRID] [INFO] websocket closed: %v", err)
	}
}

// Status is the json body of /status and /advance.
type Status struct {
	RunID      string  `json:"runId"`
	Steps      int64   `json:"steps"`
	Coverage   float64 `json:"coverage"`
	PathLength float64 `json:"pathLength"`
	Complete   bool    `json:"complete"`
}

func (server *Server) status() Status {
	stats := server.session.Stats()
	return Status{
		RunID:      server.session.ID().String(),
		Steps:      stats.Steps(),
		Coverage:   stats.Coverage(),
		PathLength: stats.PathLength(),
		Complete:   stats.Complete(),
	}
}

func (server *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.status())
}

func (server *Server) serveAdvance(w http.ResponseWriter, r *http.Request) {
	err := server.advance(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, server.status())
	case errors.Is(err, ErrRunComplete), errors.Is(err, ErrRunStopped):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrAdvanceTimeout):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		// The client went away; there is nobody to answer.
		log.Printf("[SUBGRID] [INFO] advance: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[SUBGRID] [INFO] write response: %v", err)
	}
}

// Serve the index.html main page, rendered from the latest snapshot.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, cell_views.Convert(server.session.Latest())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
