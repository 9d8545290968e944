package watch

import (
	"errors"
	"fmt"
	"github.com/saylorsolutions/reqwatch/httpx"
	"github.com/saylorsolutions/reqwatch/patterns/eventbus"
	"io"
	"log/slog"
	"sync"
)

var (
	ErrAlreadyInstalled = errors.New("interceptor already installed")
	ErrNilPrototype     = errors.New("nil prototype")
)

const (
	EventOpen = "open" // EventOpen is published before a request is opened.
	EventSend = "send" // EventSend is published before a request is sent.
)

// Events lists every event name an [Interceptor] publishes, not including [eventbus.All].
var Events = func() []string {
	events := []string{EventOpen, EventSend}
	for _, kind := range httpx.LifecycleEvents {
		events = append(events, string(kind))
	}
	return events
}()

// Prototypes may only be wrapped once, regardless of which Interceptor does it.
var installed sync.Map

// Interceptor observes requests by wrapping the operations of an [httpx.Prototype].
// Observations are published to an [eventbus.Bus] with the request as the only parameter.
type Interceptor struct {
	bus    *eventbus.Bus
	logger *slog.Logger
}

type Option func(i *Interceptor)

// WithLogger sets the logger used to report observations at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an [Interceptor] that publishes to bus.
// A new [eventbus.Bus] is created if bus is nil.
func New(bus *eventbus.Bus, opts ...Option) *Interceptor {
	if bus == nil {
		bus = eventbus.NewBus()
	}
	i := &Interceptor{
		bus:    bus,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install wraps the Open, SetRequestHeader, and Send operations of proto.
// Every request dispatching through proto is observed from then on, including requests that already exist.
//
// A prototype can only be installed once, and later calls return [ErrAlreadyInstalled].
func (i *Interceptor) Install(proto *httpx.Prototype) error {
	if proto == nil {
		return ErrNilPrototype
	}
	if _, loaded := installed.LoadOrStore(proto, i); loaded {
		return fmt.Errorf("%w: prototype %p is already wrapped", ErrAlreadyInstalled, proto)
	}
	base := httpx.NewPrototype()
	if proto.Open == nil {
		proto.Open = base.Open
	}
	if proto.SetRequestHeader == nil {
		proto.SetRequestHeader = base.SetRequestHeader
	}
	if proto.Send == nil {
		proto.Send = base.Send
	}
	proto.Open = i.WrapOpen(proto.Open)
	proto.SetRequestHeader = i.WrapSetRequestHeader(proto.SetRequestHeader)
	proto.Send = i.WrapSend(proto.Send)
	i.logger.Debug("Interceptor installed")
	return nil
}

// WrapOpen returns an [httpx.OpenFunc] that records the method and URL, along with any optional arguments that were provided.
// Then [EventOpen] is published, and orig is called.
func (i *Interceptor) WrapOpen(orig httpx.OpenFunc) httpx.OpenFunc {
	return func(r *httpx.Request, method, url string, args httpx.OpenArgs) error {
		recordOf(r).update(func(meta *Metadata) {
			meta.Method = method
			meta.URL = url
			if args.Async.Set {
				meta.Async = args.Async
			}
			if args.User.Set {
				meta.User = args.User
			}
			if args.Password.Set {
				meta.Password = args.Password
			}
		})
		i.logger.Debug("Observed open", "request_id", r.ID(), "method", method, "url", url)
		i.bus.Trigger(EventOpen, r)
		return orig(r, method, url, args)
	}
}

// WrapSetRequestHeader returns an [httpx.HeaderFunc] that calls orig, then records the header.
// The header is recorded whether orig succeeds or not.
// No event is published.
func (i *Interceptor) WrapSetRequestHeader(orig httpx.HeaderFunc) httpx.HeaderFunc {
	return func(r *httpx.Request, name, value string) error {
		err := orig(r, name, value)
		recordOf(r).update(func(meta *Metadata) {
			meta.Headers[name] = value
		})
		return err
	}
}

// WrapSend returns an [httpx.SendFunc] that records the body and starts forwarding the request's lifecycle events.
// Then [EventSend] is published, and orig is called.
//
// Lifecycle events are forwarded to the bus under their own name, with the request as the only parameter.
// Forwarding is set up once per request, no matter how many times it's sent.
func (i *Interceptor) WrapSend(orig httpx.SendFunc) httpx.SendFunc {
	return func(r *httpx.Request, body any) error {
		rec := recordOf(r)
		rec.update(func(meta *Metadata) {
			meta.Data = body
		})
		rec.forward.Do(func() {
			i.forward(r)
		})
		i.logger.Debug("Observed send", "request_id", r.ID())
		i.bus.Trigger(EventSend, r)
		return orig(r, body)
	}
}

func (i *Interceptor) forward(r *httpx.Request) {
	for _, kind := range httpx.LifecycleEvents {
		name := string(kind)
		r.AddEventListener(kind, func(httpx.Event) {
			i.bus.Trigger(name, r)
		})
	}
}

// Watcher returns the public subscription surface of the [Interceptor].
func (i *Interceptor) Watcher() Watcher {
	return Watcher{bus: i.bus}
}

// Watcher allows subscribing to request observations, and nothing else.
type Watcher struct {
	bus *eventbus.Bus
}

// On subscribes cb to one or more space separated event names.
// See [Events] for the names that are published, and [eventbus.All] to receive every event.
//
// Callbacks receive the [*httpx.Request] as the only parameter, unless subscribed to [eventbus.All].
// In that case the event name is passed first.
func (w Watcher) On(events string, cb *eventbus.Callback, ctx ...any) {
	if w.bus == nil {
		return
	}
	w.bus.On(events, cb, ctx...)
}

// RequestFunc adapts fn to an [eventbus.Callback] for use with [Watcher.On].
// The event parameter will be empty unless the callback is subscribed to [eventbus.All].
// Parameters that don't match the published shape are ignored.
func RequestFunc(fn func(event string, r *httpx.Request)) *eventbus.Callback {
	if fn == nil {
		return nil
	}
	return eventbus.Func(func(_ any, params ...eventbus.Param) {
		var (
			event string
			req   *httpx.Request
		)
		if eventbus.ParamSpec(1, eventbus.AssertAndStore(&req))(params) == nil {
			fn("", req)
			return
		}
		if eventbus.ParamSpec(2, eventbus.AssertAndStore(&event), eventbus.AssertAndStore(&req))(params) == nil {
			fn(event, req)
		}
	})
}
