/*
Package eventbus provides a synchronous, named channel event bus that allows loose coupling between the code that emits events and the code that reacts to them.

# Design Priorities

  - It should be deterministic. Subscribers are called in the order they subscribed, on the goroutine that triggered the event.
  - It should be transparent. A panicking subscriber is not hidden from the code that triggered the event.
  - It should be safe to re-enter. Subscribers may subscribe, unsubscribe, or trigger from within a callback.

# Channels

Every event is identified by name, and the subscribers to a name form a channel.
Methods accepting event names accept several names separated by whitespace, so "load error" refers to two channels.

The [All] channel is reserved as a wildcard.
Subscribers to [All] are called for every triggered event after the subscribers of that event, and they receive the event name as their first [Param].

# Callbacks and Contexts

A [Callback] is created with [Func], and the pointer is the identity used by [Bus.Off].
A context value may be bound to a subscription, and it's passed to the callback as its target.
When there is no context, the target is the [Bus] itself.

Removal with [Bus.Off] treats the callback and context as independent filters, and a subscription is removed only if it matches every filter given.

# Params

Params are untyped, so [ParamAt] and [ParamSpec] are provided to make assertions about them in callbacks.
See patterns/eventbus/paramspec_test.go for an example of this.
*/
package eventbus
