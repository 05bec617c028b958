package pageops

import (
	"context"
	"errors"
)

// Event names emitted to other plugins, spec §4.6.
const (
	EventCreateContent = "create_content"
	EventPageCloned    = "page_cloned"
	EventDestroyed     = "destroyed"
	EventModified      = "modified"
)

// Listener observes a lifecycle event. Per spec design notes §9, this
// replaces the teacher-language "impl function returns true -> base
// class continues" signal idiom with a plain observer list and
// explicit result aggregation: every listener always runs, and their
// errors are joined rather than short-circuiting.
type Listener func(ctx context.Context, page string) error

// Events is a minimal pub/sub bus plugins register against.
type Events struct {
	listeners map[string][]Listener
}

// NewEvents returns an empty bus.
func NewEvents() *Events {
	return &Events{listeners: make(map[string][]Listener)}
}

// On registers listener for name.
func (e *Events) On(name string, listener Listener) {
	e.listeners[name] = append(e.listeners[name], listener)
}

// Emit calls every listener registered for name with page, aggregating
// every error via errors.Join rather than stopping at the first
// failure, since event listeners are documented as idempotent and
// independent (spec §4.6 step 10).
func (e *Events) Emit(ctx context.Context, name, page string) error {
	var errs []error
	for _, l := range e.listeners[name] {
		if err := l(ctx, page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
