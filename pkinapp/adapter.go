package pkinapp

import (
	"context"
)

// AdapterPrepareResult is the outcome of Adapter.Prepare.
type AdapterPrepareResult int

const (
	// AdapterPrepareSuccess means the message is ready to display.
	AdapterPrepareSuccess AdapterPrepareResult = iota
	// AdapterPrepareRetry means preparation failed and should be retried.
	AdapterPrepareRetry
	// AdapterPrepareCancel means the message can never be displayed; its schedule is cancelled.
	AdapterPrepareCancel
	// AdapterPrepareInvalidate means preparation must start over, including the audience check.
	AdapterPrepareInvalidate
)

// Adapter displays one message. A new adapter is created for every execution of a schedule.
type Adapter interface {
	// Prepare fetches whatever the message needs before it can be displayed.
	Prepare(ctx context.Context) AdapterPrepareResult
	// IsReadyToDisplay is called immediately before display and must return quickly.
	IsReadyToDisplay() bool
	// Display shows the message and calls done exactly once when it goes away.
	Display(ctx context.Context, done func(Resolution))
}

// AdapterFactory creates adapters for one display type.
type AdapterFactory interface {
	CreateAdapter(message Message) (Adapter, error)
}

// AdapterFactoryFunc is an AdapterFactory implemented by a function.
type AdapterFactoryFunc func(message Message) (Adapter, error)

// CreateAdapter implements AdapterFactory.
func (f AdapterFactoryFunc) CreateAdapter(message Message) (Adapter, error) {
	return f(message)
}
