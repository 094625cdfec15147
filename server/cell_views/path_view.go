package cell_views

import (
	"fmt"
	"html/template"
	"strings"

	"subgrid/grid_world"
	"subgrid/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// PathView traces the visit order as a polyline through cell centers, above a status line.
type PathView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewPathView(
	done <-chan struct{},
	frames <-chan Frame,
) (pv *PathView) {
	pv = &PathView{id: template.HTMLEscapeString("coveragepath")}
	pv.updates = channerics.Convert(done, frames, pv.onUpdate)
	return
}

func (pv *PathView) Updates() <-chan []fastview.EleUpdate {
	return pv.updates
}

func (pv *PathView) polylineId() string {
	return pv.id + "-line"
}

func (pv *PathView) statusId() string {
	return pv.id + "-status"
}

// getPathPoints returns a string suitable for the svg-polyline 'points' attribute.
func getPathPoints(path []grid_world.Index) string {
	half := cellDim / 2
	points := make([]string, 0, len(path))
	for _, idx := range path {
		points = append(points, fmt.Sprintf("%d,%d", idx.Col*cellDim+half, idx.Row*cellDim+half))
	}
	return strings.Join(points, " ")
}

func (pv *PathView) onUpdate(frame Frame) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		{
			EleId: pv.polylineId(),
			Ops: []fastview.Op{
				{Key: "points", Value: getPathPoints(frame.Path)},
			},
		},
		{
			EleId: pv.statusId(),
			Ops: []fastview.Op{
				{Key: "textContent", Value: frame.Status},
			},
		},
	}
}

// Parse adds the path template to t and returns its name.
func (pv *PathView) Parse(
	t *template.Template,
) (name string, err error) {
	name = pv.id
	addedMap := template.FuncMap{
		"getPathPoints": getPathPoints,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div id="path">
			{{ $width := mult ` + fmt.Sprintf("%d", cellDim) + ` (len .Cells) }}
			<p id="` + pv.statusId() + `">{{ .Status }}</p>
			<svg id="` + pv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add $width 1 }}px"
				height="{{ add $width 1 }}px">
				<rect x="0" y="0" width="{{ $width }}" height="{{ $width }}"
					fill="none" stroke="black" stroke-width="1"/>
				<polyline id="` + pv.polylineId() + `"
					points="{{ getPathPoints .Path }}"
					fill="none" stroke="steelblue" stroke-width="3"
					stroke-linejoin="round"/>
			</svg>
		</div>
		{{ end }}`)
	return
}
