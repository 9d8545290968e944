/*
Package reqwatch observes HTTP requests made through an httpx Client without changing how callers use it.

The pieces fit together like this:
  - httpx provides a browser style request object, with open, setRequestHeader, and send operations dispatched through a replaceable prototype.
  - watch installs an interceptor on that prototype, records request metadata, and forwards every lifecycle event to a patterns/eventbus Bus.
  - journal subscribes to the bus and keeps a bounded history of observed requests.
  - cmd/reqwatch is a CLI that performs requests and reports what the interceptor sees.
*/
package reqwatch
