package scheduler

import "context"

// drainGate is a binary gate that is held exactly while at least one
// sub-job is running. Unlike sync.Mutex it can be waited on with a context.
type drainGate struct {
	ch chan struct{}
}

func newDrainGate() *drainGate {
	return &drainGate{ch: make(chan struct{}, 1)}
}

// hold takes the gate. It only blocks while a concurrent wait briefly owns
// the gate.
func (g *drainGate) hold() {
	g.ch <- struct{}{}
}

// release frees the gate. Returns false if the gate was not held.
func (g *drainGate) release() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// held reports whether the gate is currently taken.
func (g *drainGate) held() bool {
	return len(g.ch) == 1
}

// wait blocks until the gate is free or ctx is done. The gate is left free.
func (g *drainGate) wait(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		<-g.ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
