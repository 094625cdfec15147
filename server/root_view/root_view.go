package root_view

import (
	"context"
	"html/template"
	"time"

	"subgrid/server/cell_views"
	"subgrid/server/fastview"
	"subgrid/session"

	channerics "github.com/niceyeti/channerics/channels"
)

// AdvanceMessage is the websocket text message by which the page requests a step.
const AdvanceMessage = "advance"

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, etc.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView creates the main page and the views it contains. Snapshots
// received on snapshots are converted once and broadcast to every view.
func NewRootView(
	ctx context.Context,
	snapshots <-chan *session.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[*session.Snapshot, cell_views.Frame]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewWeightsGrid(done, frames)
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewPathView(done, frames)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
// It supports a single consumer.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(fastview.FuncMap())

	viewTemplates := []string{}
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		viewTemplates = append(viewTemplates, tname)
	}

	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The main template bootstraps the rest: sets up the client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<title>subgrid</title>
			<!--The client bootstrap code by which the server pushes new data to the view via websocket.-->
			<script>
				const ws = new WebSocket("ws://" + window.location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (!ele) {
							continue;
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}

				function advance() {
					if (ws.readyState === WebSocket.OPEN) {
						ws.send("` + AdvanceMessage + `");
					}
				}

				document.addEventListener("keydown", function (event) {
					if (event.key === " " || event.key === "n" || event.key === "Enter") {
						event.preventDefault();
						advance();
					}
				});
			</script>
		</head>
		<body>
		<button onclick="advance()">Advance</button>
		<div style="display:flex; gap:40px;">
		` + bodySpec + `
		</div>
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single channel,
// and throttles its output.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		time.Millisecond*20)
}

// batchify batches within the passed time frame before sending, over-writing previously
// received values for the same ele-id, so only the latest values are sent. A pending
// batch is flushed when source closes.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		send := func(data map[string]fastview.EleUpdate) bool {
			if len(data) == 0 {
				return true
			}
			select {
			case output <- fastview.SlicedVals(data):
				return true
			case <-done:
				return false
			}
		}

		data := map[string]fastview.EleUpdate{}
		flush := channerics.NewTicker(done, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					send(data)
					return
				}
				// Intentionally overwrites pre-existing values for an ele-id within this batch's time frame.
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-flush:
				if !send(data) {
					return
				}
				data = map[string]fastview.EleUpdate{}
			}
		}
	}()

	return output
}
