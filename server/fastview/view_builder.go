package fastview

import (
	"context"
	"errors"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilder wires one data-model source to any number of views that share a view-model.
// The data model is converted once per item and the result is broadcast to every view.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source      <-chan DataModel
	viewModelFn func(DataModel) ViewModel
	builderFns  []ViewBuilderFunc[ViewModel]
	done        <-chan struct{} // Okay if nil
}

// ViewBuilderFunc builds a view from a 'done' channel for cleanup and its view-model channel.
type ViewBuilderFunc[ViewModel any] func(<-chan struct{}, <-chan ViewModel) ViewComponent

// NewViewBuilder returns a builder for a given data-model and view-model.
func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the data-model source and the function converting each item to the view-model.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = input
	vb.viewModelFn = convert
	return vb
}

// WithView adds a view to build. Views are returned by Build in the order they were added.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	builderFn ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.builderFns = append(vb.builderFns, builderFn)
	return vb
}

// WithContext closes all downstream channels when ctx is cancelled.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

var (
	// ErrNoViews is returned when Build() is called before the caller has added any views.
	ErrNoViews = errors.New("no views to build: WithView must be called")
	// ErrNoModel is returned when Build() is called before WithModel() has been called.
	ErrNoModel = errors.New("no model specified: WithModel must be called")
)

// Build connects source -> view-model -> broadcast -> views and returns the views.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() (views []ViewComponent, err error) {
	if len(vb.builderFns) == 0 {
		return nil, ErrNoViews
	}
	if vb.viewModelFn == nil || vb.source == nil {
		return nil, ErrNoModel
	}

	vmChan := channerics.Convert(vb.done, vb.source, vb.viewModelFn)
	vmChans := channerics.Broadcast(vb.done, vmChan, len(vb.builderFns))
	for i, build := range vb.builderFns {
		views = append(views, build(vb.done, vmChans[i]))
	}
	return
}
