package httpx

import (
	"slices"
)

// ReadyState describes how far a [Request] has progressed.
type ReadyState int

const (
	Unsent          ReadyState = iota // Unsent is the state of a new or aborted Request.
	Opened                            // Opened means the Request has a method and URL, and headers may be set.
	HeadersReceived                   // HeadersReceived means the response status and headers are available.
	Loading                           // Loading means the response body is being received.
	Done                              // Done means the transfer has completed, failed, or was aborted.
)

func (s ReadyState) String() string {
	switch s {
	case Unsent:
		return "UNSENT"
	case Opened:
		return "OPENED"
	case HeadersReceived:
		return "HEADERS_RECEIVED"
	case Loading:
		return "LOADING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// EventKind names a lifecycle notification emitted by a [Request].
type EventKind string

const (
	EventLoadStart        EventKind = "loadstart"
	EventProgress         EventKind = "progress"
	EventLoad             EventKind = "load"
	EventError            EventKind = "error"
	EventAbort            EventKind = "abort"
	EventTimeout          EventKind = "timeout"
	EventLoadEnd          EventKind = "loadend"
	EventReadyStateChange EventKind = "readystatechange"
)

// LifecycleEvents are all the kinds of [Event] a [Request] emits.
var LifecycleEvents = []EventKind{
	EventProgress,
	EventLoadStart,
	EventLoad,
	EventError,
	EventLoadEnd,
	EventAbort,
	EventTimeout,
	EventReadyStateChange,
}

// Event is passed to a [Listener] when a [Request] reaches a point in its lifecycle.
type Event struct {
	Kind             EventKind
	Target           *Request
	Loaded           int64 // Loaded is the number of response body bytes received so far.
	Total            int64 // Total is the expected body size, and is only meaningful when LengthComputable is true.
	LengthComputable bool
}

// Listener is notified of [Event] emitted by a [Request].
// Listeners are called on the goroutine performing the transfer, so they should return quickly.
type Listener func(evt Event)

// AddEventListener registers l to be called for every [Event] of the given kind.
// Nil listeners are ignored.
func (r *Request) AddEventListener(kind EventKind, l Listener) {
	if l == nil {
		return
	}
	r.listenerMux.Lock()
	defer r.listenerMux.Unlock()
	if r.listeners == nil {
		r.listeners = map[EventKind][]Listener{}
	}
	r.listeners[kind] = append(r.listeners[kind], l)
}

// RemoveEventListeners removes every [Listener] registered for kind.
func (r *Request) RemoveEventListeners(kind EventKind) {
	r.listenerMux.Lock()
	defer r.listenerMux.Unlock()
	delete(r.listeners, kind)
}

func (r *Request) fire(evt Event) {
	evt.Target = r
	r.listenerMux.Lock()
	listeners := slices.Clone(r.listeners[evt.Kind])
	r.listenerMux.Unlock()
	for _, l := range listeners {
		l(evt)
	}
}

func (r *Request) fireKind(kind EventKind) {
	r.fire(Event{Kind: kind})
}
