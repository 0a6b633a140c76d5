// Package sink defines where finished Job results go.
package sink

import (
	"errors"

	"github.com/me/ppsched/pkg/model"
)

// Sink receives the result of every finished Job exactly once. Deliver is
// called outside the scheduler's state lock and may block.
type Sink interface {
	Deliver(r model.Result) error
}

// Func adapts a function to a Sink.
type Func func(r model.Result) error

// Deliver calls f(r).
func (f Func) Deliver(r model.Result) error { return f(r) }

// Discard drops every result.
var Discard Sink = Func(func(model.Result) error { return nil })

// Multi fans a result out to several sinks in order. Every sink is called
// even if an earlier one fails; the errors are joined.
type Multi []Sink

// Deliver hands r to each sink.
func (m Multi) Deliver(r model.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
