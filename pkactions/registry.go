package pkactions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrActionNotFound is returned by Registry.Run for a name with no handler.
	ErrActionNotFound = errors.New("action not found")
	// ErrArgumentsRejected is returned by Registry.Run when the handler does not accept the
	// arguments.
	ErrArgumentsRejected = errors.New("action arguments rejected")
	// ErrNoActionNames is returned by Registry.Register when no name is given.
	ErrNoActionNames = errors.New("an action needs at least one name")
)

// Registry maps action names to handlers. One handler may be registered under several names, for
// instance a long name and a short alias. It is safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
	lock     sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register registers a handler under each of the names, replacing any handler previously
// registered under one of them.
func (r *Registry) Register(handler Handler, names ...string) error {
	if len(names) == 0 {
		return ErrNoActionNames
	}
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrNoActionNames)
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, name := range names {
		r.handlers[name] = handler
	}
	return nil
}

// Remove removes the handler registered under name. Other names of the same handler are kept.
func (r *Registry) Remove(name string) {
	r.lock.Lock()
	delete(r.handlers, name)
	r.lock.Unlock()
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.lock.RLock()
	ret := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		ret = append(ret, name)
	}
	r.lock.RUnlock()
	sort.Strings(ret)
	return ret
}

// Run performs the action registered under name. An empty Situation is replaced by
// SituationManualInvocation.
func (r *Registry) Run(ctx context.Context, name string, args Arguments) error {
	handler, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrActionNotFound, name)
	}
	if args.Situation == "" {
		args.Situation = SituationManualInvocation
	}
	if acceptor, ok := handler.(ArgumentsAcceptor); ok && !acceptor.AcceptsArguments(args) {
		return fmt.Errorf("%w: %q", ErrArgumentsRejected, name)
	}
	if err := handler.Perform(ctx, args); err != nil {
		return fmt.Errorf("action %q failed: %w", name, err)
	}
	return nil
}
