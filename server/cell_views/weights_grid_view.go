package cell_views

import (
	"fmt"
	"html/template"

	"subgrid/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Cell size in pixels for the svg grids.
const cellDim = 60

// WeightsGrid shows every cell's weight, shaded by weight and visit state,
// with the current pose highlighted.
type WeightsGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewWeightsGrid(
	done <-chan struct{},
	frames <-chan Frame,
) (wg *WeightsGrid) {
	// No hyphens: they interfere with html/template's `template` directive.
	wg = &WeightsGrid{id: template.HTMLEscapeString("weightsgrid")}
	wg.updates = channerics.Convert(done, frames, wg.onUpdate)
	return
}

func (wg *WeightsGrid) Updates() <-chan []fastview.EleUpdate {
	return wg.updates
}

func cellId(row, col int) string {
	return fmt.Sprintf("%d-%d-cell", row, col)
}

func weightTextId(row, col int) string {
	return fmt.Sprintf("%d-%d-weight-text", row, col)
}

func formatWeight(weight float64) string {
	return fmt.Sprintf("%.2f", weight)
}

// Returns the set of view updates needed for the view to reflect the current weights.
func (wg *WeightsGrid) onUpdate(frame Frame) (ops []fastview.EleUpdate) {
	for _, row := range frame.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: cellId(cell.Row, cell.Col),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				},
				fastview.EleUpdate{
					EleId: weightTextId(cell.Row, cell.Col),
					Ops: []fastview.Op{
						{Key: "textContent", Value: formatWeight(cell.Weight)},
					},
				})
		}
	}
	return
}

// Parse adds the weights grid template to t and returns its name.
func (wg *WeightsGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = wg.id
	addedMap := template.FuncMap{
		"weight": formatWeight,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div id="weights">
			{{ $cells := .Cells }}
			{{ $num_cells := len $cells }}
			{{ $cell_width := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $width := mult $cell_width $num_cells }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + wg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add $width 1 }}px"
				height="{{ add $width 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := $cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.Row}}-{{$cell.Col}}-cell"
							x="{{ mult $cell.Col $cell_width }}"
							y="{{ mult $cell.Row $cell_width }}"
							width="{{ $cell_width }}"
							height="{{ $cell_width }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{$cell.Row}}-{{$cell.Col}}-weight-text"
							x="{{ add (mult $cell.Col $cell_width) $half_width }}"
							y="{{ add (mult $cell.Row $cell_width) $half_width }}"
							font-size="12"
							dominant-baseline="central" text-anchor="middle"
							>{{ weight $cell.Weight }}</text>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
