package eventbus

import (
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// All is the wildcard channel.
// Subscribers on All receive every triggered event, with the event name prepended to the params.
const All = "all"

type Param any

// CallbackFunc is called for each matching event.
// The target is the context given at subscription time, or the [Bus] that dispatched the event if there was none.
type CallbackFunc func(target any, params ...Param)

// Callback gives a [CallbackFunc] an identity, so it may be removed later with [Bus.Off].
// Two Callbacks made from the same function are different subscribers.
type Callback struct {
	fn CallbackFunc
}

// Func creates a [Callback] from a function.
// A nil function results in a nil Callback, which every subscription method ignores.
func Func(fn CallbackFunc) *Callback {
	if fn == nil {
		return nil
	}
	return &Callback{fn: fn}
}

type subscription struct {
	callback  *Callback
	invoke    CallbackFunc
	context   any
	eventName string

	// once is shared by the subscriptions created by a single call to [Bus.Once].
	once *atomic.Bool
}

func (s *subscription) matches(cb *Callback, ctx any) bool {
	if cb != nil && s.callback != cb {
		return false
	}
	if ctx != nil && !sameContext(s.context, ctx) {
		return false
	}
	return true
}

// sameContext reports reference equality for contexts.
// Maps and slices are the same context if they share backing storage.
// Other values with types that can't be compared never match, rather than panicking.
func sameContext(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	default:
		return false
	}
}

// Bus is a named channel publish/subscribe primitive.
// The zero value is ready to use, and a Bus is safe for concurrent use.
type Bus struct {
	mux      sync.Mutex
	channels map[string][]*subscription
}

// NewBus creates an empty [Bus].
func NewBus() *Bus {
	return &Bus{}
}

func firstContext(ctx []any) any {
	if len(ctx) == 0 {
		return nil
	}
	return ctx[0]
}

// On subscribes cb to each whitespace separated name in events.
// An optional context may be given, which will be passed to cb as its target.
// Subscribing the same callback and context more than once results in multiple invocations.
func (b *Bus) On(events string, cb *Callback, ctx ...any) *Bus {
	if cb == nil {
		return b
	}
	return b.on(events, cb, cb.fn, firstContext(ctx), nil)
}

func (b *Bus) on(events string, cb *Callback, invoke CallbackFunc, ctx any, once *atomic.Bool) *Bus {
	b.mux.Lock()
	defer b.mux.Unlock()
	for _, name := range strings.Fields(events) {
		if b.channels == nil {
			b.channels = map[string][]*subscription{}
		}
		b.channels[name] = append(b.channels[name], &subscription{
			callback:  cb,
			invoke:    invoke,
			context:   ctx,
			eventName: name,
			once:      once,
		})
	}
	return b
}

// Once is like [Bus.On], except that cb is called at most once.
// Whichever of the named events fires first removes cb (with the same context) from all of them before cb runs.
func (b *Bus) Once(events string, cb *Callback, ctx ...any) *Bus {
	if cb == nil {
		return b
	}
	var (
		bound = firstContext(ctx)
		fired = new(atomic.Bool)
	)
	invoke := func(target any, params ...Param) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		b.off(events, cb, bound)
		b.removeOnce(fired)
		cb.fn(target, params...)
	}
	return b.on(events, cb, invoke, bound, fired)
}

// removeOnce removes every subscription created by the same call to [Bus.Once].
func (b *Bus) removeOnce(once *atomic.Bool) {
	b.mux.Lock()
	defer b.mux.Unlock()
	for name, list := range b.channels {
		list = slices.DeleteFunc(list, func(sub *subscription) bool {
			return sub.once == once
		})
		if len(list) == 0 {
			delete(b.channels, name)
			continue
		}
		b.channels[name] = list
	}
}

// Off removes subscriptions.
//
//   - With no events, callback, or context, every subscription is removed.
//   - With no events, the callback and/or context filter is applied to every channel.
//   - With events and no filter, those channels are removed entirely.
//   - Otherwise, subscriptions in the named channels are removed if they match every filter given.
//
// Events that only contain whitespace are treated as if none were given.
func (b *Bus) Off(events string, cb *Callback, ctx ...any) *Bus {
	b.off(events, cb, firstContext(ctx))
	return b
}

func (b *Bus) off(events string, cb *Callback, ctx any) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if len(b.channels) == 0 {
		return
	}
	noFilter := cb == nil && ctx == nil
	names := strings.Fields(events)
	if len(names) == 0 {
		if noFilter {
			b.channels = nil
			return
		}
		names = b.names()
	}
	for _, name := range names {
		list, ok := b.channels[name]
		if !ok {
			continue
		}
		if noFilter {
			delete(b.channels, name)
			continue
		}
		list = slices.DeleteFunc(list, func(sub *subscription) bool {
			return sub.matches(cb, ctx)
		})
		if len(list) == 0 {
			delete(b.channels, name)
			continue
		}
		b.channels[name] = list
	}
}

// Trigger dispatches each whitespace separated event in events.
// Subscribers to the event receive params, then subscribers to [All] receive the event name followed by params.
//
// Both subscriber lists are copied before dispatch starts, so subscribing or unsubscribing within a callback only affects later calls to Trigger.
// Panics in a callback are not recovered.
func (b *Bus) Trigger(events string, params ...Param) *Bus {
	for _, name := range strings.Fields(events) {
		list, all := b.snapshot(name)
		for _, sub := range list {
			sub.invoke(b.target(sub), params...)
		}
		if len(all) == 0 {
			continue
		}
		args := make([]Param, 0, len(params)+1)
		args = append(args, name)
		args = append(args, params...)
		for _, sub := range all {
			sub.invoke(b.target(sub), args...)
		}
	}
	return b
}

func (b *Bus) target(sub *subscription) any {
	if sub.context != nil {
		return sub.context
	}
	return b
}

func (b *Bus) snapshot(name string) (list, all []*subscription) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return slices.Clone(b.channels[name]), slices.Clone(b.channels[All])
}

func (b *Bus) names() []string {
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Events returns the sorted names of channels that have at least one subscriber.
func (b *Bus) Events() []string {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.names()
}

// Len returns the number of subscriptions in the named channel.
func (b *Bus) Len(event string) int {
	b.mux.Lock()
	defer b.mux.Unlock()
	return len(b.channels[event])
}

// Has reports whether the named channel has any subscriptions.
func (b *Bus) Has(event string) bool {
	return b.Len(event) > 0
}
