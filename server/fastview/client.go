package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// The rate at which coalesced ele-updates are sent to the client, so as not to overburden.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes ele-updates unidirectionally to a web page over a websocket,
// and hands any text message the page sends back to onMessage.
type Client struct {
	updates   <-chan []EleUpdate
	onMessage func(string)
	ws        *websock
	rootCtx   context.Context
}

// NewClient upgrades the request to a websocket. Updates arriving faster than
// the publication rate are coalesced per element, the latest op set winning,
// so they must describe element state rather than deltas. onMessage may be nil.
func NewClient(
	updates <-chan []EleUpdate,
	onMessage func(string),
	w http.ResponseWriter,
	r *http.Request,
) (*Client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client{
		updates:   updates,
		onMessage: onMessage,
		ws:        NewWebSocket(ws),
		rootCtx:   r.Context(),
	}, nil
}

// Sync runs the reader, the ping-pong liveness check, and the publisher until
// any of them stops, then closes the websocket. It returns nil upon client
// disconnect or update-channel closure, and an error otherwise.
func (cli *Client) Sync() error {
	ctx, cancel := context.WithCancel(cli.rootCtx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return cli.publish(groupCtx)
	})
	group.Go(func() error {
		// Closing the socket is what unblocks a pending read.
		<-groupCtx.Done()
		cli.ws.Close()
		return nil
	})

	return group.Wait()
}

// ErrPongDeadlineExceeded means the peer stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %v", err, err)
				}
			}
			return
		})
}

// readMessages forwards text messages from the client to onMessage.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown; closures and our own shutdown are not errors.
func (cli *Client) readMessages(ctx context.Context) error {
	for {
		var (
			msgType int
			data    []byte
		)
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				msgType, data, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			if ctx.Err() != nil || isClosure(err) || !isError(err) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if msgType == websocket.TextMessage && cli.onMessage != nil {
			cli.onMessage(string(data))
		}
	}
}

// publish coalesces incoming updates and flushes them once per pubResolution.
func (cli *Client) publish(ctx context.Context) error {
	flush := channerics.NewTicker(ctx.Done(), pubResolution)
	pending := map[string]EleUpdate{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return cli.write(ctx, pending)
			}
			for _, update := range updates {
				pending[update.EleId] = update
			}
		case <-flush:
			if err := cli.write(ctx, pending); err != nil {
				return err
			}
			pending = map[string]EleUpdate{}
		}
	}
}

func (cli *Client) write(ctx context.Context, pending map[string]EleUpdate) error {
	if len(pending) == 0 {
		return nil
	}
	updates := SlicedVals(pending)
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				return fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
			}

			if writeErr = ws.WriteJSON(updates); writeErr != nil {
				if isError(writeErr) {
					writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
				}
			}
			return
		})
}

// SlicedVals returns the values of a map as a slice.
func SlicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline  = time.Second
	writeDeadline = time.Second
)

// websock serializes reads and writes to the websocket, which allows at most
// one concurrent reader and one concurrent writer.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame, if the writer is free, and closes the connection.
// A reader blocked in ReadMessage returns once the connection is closed.
func (sock *websock) Close() {
	select {
	case sock.writeSem <- struct{}{}:
		_ = sock.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		<-sock.writeSem
	case <-time.After(writeDeadline):
	}
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
