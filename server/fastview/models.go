// fastview implements a builder pattern to implement simple views:
// given an input data format, apply a transformation to a view-model,
// and then multiplex that data to one or more views.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or 'textContent', values are the strings to which these are set.
	// Example: ('fill','gray') means 'set attribute fill to gray'. 'textContent' is a reserved key:
	// ('textContent','0.42') means 'set ele.textContent to 0.42'.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent implements server side views: Parse to add their initial form
// to the page template and Updates to obtain the chan by which ele-updates are notified.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse parses the view-component and adds it to the passed parent template, thus inheriting
	// or possibly extending its definition (func-map, etc). Returns the defined template's name.
	Parse(*template.Template) (string, error)
}

// FuncMap returns the arithmetic helpers every view template may use. It must be
// added to the parent template before any view parses.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
		"max": func(i, j int) int {
			if i > j {
				return i
			}
			return j
		},
	}
}
