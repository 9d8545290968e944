package signalx

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// ExitFunc is called when a second signal is received, and is [os.Exit] by default.
var ExitFunc = os.Exit

// ExitContext returns a context that is cancelled when any of the given signals are received.
// If another signal is received after that, then [ExitFunc] is called with exit code 1.
//
// The returned stop function cancels the context and stops relaying signals.
// It should be called when signal handling is no longer needed.
func ExitContext(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	if len(signals) == 0 {
		panic("no signals passed to ExitContext")
	}
	ctx, cancel := context.WithCancel(parent)
	var (
		sigs     = make(chan os.Signal, 1)
		stopped  = make(chan struct{})
		stopOnce sync.Once
	)
	signal.Notify(sigs, signals...)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-stopped:
			return
		}
		select {
		case <-sigs:
			ExitFunc(1)
		case <-stopped:
		}
	}()
	return ctx, func() {
		stopOnce.Do(func() {
			signal.Stop(sigs)
			close(stopped)
			cancel()
		})
	}
}
