package root_view

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"subgrid/grid_world"
	"subgrid/server/cell_views"
	"subgrid/server/fastview"
	"subgrid/session"

	. "github.com/smartystreets/goconvey/convey"
)

func testSnapshot(step int) *session.Snapshot {
	return &session.Snapshot{
		Step:    step,
		Size:    1,
		Pose:    grid_world.Index{},
		Path:    []grid_world.Index{{}},
		Weights: [][]float64{{grid_world.VisitedWeight}},
		Visited: [][]bool{{true}},
	}
}

func TestRootView(t *testing.T) {
	Convey("When the root view receives snapshots", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		snapshots := make(chan *session.Snapshot, 1)
		rv, err := NewRootView(ctx, snapshots)
		So(err, ShouldBeNil)

		snapshots <- testSnapshot(3)

		seen := map[string]fastview.EleUpdate{}
		timeout := time.After(time.Second)
		for len(seen) < 4 {
			select {
			case updates := <-rv.Updates():
				for _, update := range updates {
					seen[update.EleId] = update
				}
			case <-timeout:
				t.Fatalf("only received %d element updates", len(seen))
			}
		}
		So(seen, ShouldContainKey, "0-0-cell")
		So(seen, ShouldContainKey, "0-0-weight-text")
		So(seen, ShouldContainKey, "coveragepath-line")
		So(seen["coveragepath-status"].Ops[0].Value, ShouldStartWith, "step 3")
	})

	Convey("When the main page is rendered", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rv, err := NewRootView(ctx, make(chan *session.Snapshot))
		So(err, ShouldBeNil)

		tmpl := template.New("index.html")
		name, err := rv.Parse(tmpl)
		So(err, ShouldBeNil)
		So(name, ShouldEqual, "mainpage")

		var buf bytes.Buffer
		So(tmpl.ExecuteTemplate(&buf, name, cell_views.Convert(testSnapshot(0))), ShouldBeNil)
		page := buf.String()
		So(page, ShouldContainSubstring, `id="weightsgrid"`)
		So(page, ShouldContainSubstring, `id="coveragepath"`)
		So(page, ShouldContainSubstring, "/ws")
	})
}

func TestBatchify(t *testing.T) {
	Convey("When updates for one element arrive within a batch", t, func() {
		done := make(chan struct{})
		defer close(done)
		source := make(chan []fastview.EleUpdate)
		batches := batchify(done, source, time.Hour)

		source <- []fastview.EleUpdate{{EleId: "a", Ops: []fastview.Op{{Key: "fill", Value: "red"}}}}
		source <- []fastview.EleUpdate{{EleId: "a", Ops: []fastview.Op{{Key: "fill", Value: "blue"}}}}
		close(source)

		Convey("Only the latest is sent, and closure flushes it", func() {
			batch := <-batches
			So(batch, ShouldResemble, []fastview.EleUpdate{{EleId: "a", Ops: []fastview.Op{{Key: "fill", Value: "blue"}}}})
			_, ok := <-batches
			So(ok, ShouldBeFalse)
		})
	})
}
