package sse

import (
	"context"
	"time"

	"github.com/viant/mcpsession/session"
)

// graceOwner delays propagating a cancelled context's death by a fixed grace
// window, giving a disconnected SSE client time to reconnect (presenting the
// same session id) before the registry's owner-monitor unregisters the
// session out from under it. If the grace window elapses with no reattach,
// Done() closes and the session is torn down as usual.
type graceOwner struct {
	done chan struct{}
}

// newGraceOwner starts watching ctx and returns an Owner whose Done() fires
// grace after ctx is cancelled. grace <= 0 collapses to ctx's own Done, i.e.
// no grace period at all.
func newGraceOwner(ctx context.Context, grace time.Duration) session.Owner {
	if grace <= 0 {
		return ctx
	}
	g := &graceOwner{done: make(chan struct{})}
	go func() {
		<-ctx.Done()
		timer := time.NewTimer(grace)
		defer timer.Stop()
		<-timer.C
		close(g.done)
	}()
	return g
}

func (g *graceOwner) Done() <-chan struct{} { return g.done }
