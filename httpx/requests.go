package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidState  = errors.New("invalid request state")
	ErrInvalidMethod = errors.New("invalid request method")
	ErrInvalidURL    = errors.New("invalid request URL")
	ErrInvalidHeader = errors.New("invalid request header")
	ErrInvalidBody   = errors.New("invalid request body")
	ErrNetwork       = errors.New("network error")
	ErrTimeout       = errors.New("request timed out")
	ErrAborted       = errors.New("request aborted")
)

// Request is an asynchronous HTTP request with an observable lifecycle.
// It's created [Unsent] with [Client.NewRequest], prepared with Open and SetRequestHeader, then started with Send.
//
// Open, SetRequestHeader, and Send dispatch through the [Client]'s [Prototype].
// Progress is reported to listeners registered with [Request.AddEventListener].
//
// A zero Request is usable, and dispatches through a shared default [Client].
type Request struct {
	id       string
	client   *Client
	initOnce sync.Once

	mux        sync.RWMutex
	method     string
	u          *url.URL
	async      bool
	user       Optional[string]
	password   Optional[string]
	headers    http.Header
	timeout    time.Duration
	state      ReadyState
	sent       bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	status     int
	statusText string
	respHeader http.Header
	body       bytes.Buffer
	err        error

	listenerMux sync.Mutex
	listeners   map[EventKind][]Listener

	attachMux   sync.Mutex
	attachments map[any]any
}

// Open initializes the request with a method and URL, and moves it to the [Opened] state.
// Any transfer in progress is abandoned without notification.
func (r *Request) Open(method, rawURL string, args OpenArgs) error {
	return r.owner().proto.Open(r, method, rawURL, args)
}

// SetRequestHeader sets a header to be sent with the request.
// Setting the same header more than once combines the values.
func (r *Request) SetRequestHeader(name, value string) error {
	return r.owner().proto.SetRequestHeader(r, name, value)
}

// Send starts the transfer.
// Asynchronous requests return immediately, while synchronous requests return when the transfer is finished along with any transfer error.
//
// The body may be nil, a string, a []byte, an [io.Reader], or [url.Values]. Other values are encoded as JSON.
// The body is ignored for GET and HEAD requests.
func (r *Request) Send(body any) error {
	return r.owner().proto.Send(r, body)
}

var defaultClient func() *Client

func init() {
	defaultClient = sync.OnceValue(func() *Client {
		return NewClient()
	})
}

// owner returns the Client of the request, giving a zero Request an ID and the default Client first.
func (r *Request) owner() *Client {
	r.initOnce.Do(func() {
		if r.client == nil {
			r.client = defaultClient()
		}
		if len(r.id) == 0 {
			r.id = uuid.NewString()
		}
	})
	return r.client
}

func open(r *Request, method, rawURL string, args OpenArgs) error {
	method, err := normalizeMethod(method)
	if err != nil {
		return err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(u.Scheme) == 0 || len(u.Host) == 0 {
		return fmt.Errorf("%w: '%s' must be absolute", ErrInvalidURL, rawURL)
	}

	r.mux.Lock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.method = method
	r.u = u
	r.async = args.Async.Or(true)
	r.user = args.User
	r.password = args.Password
	r.headers = http.Header{}
	r.sent = false
	r.resetResponse()
	changed := r.state != Opened
	r.state = Opened
	r.mux.Unlock()

	r.owner().logger.Debug("Request opened", "request_id", r.id, "method", method, "url", u.String())
	if changed {
		r.fireKind(EventReadyStateChange)
	}
	return nil
}

func setRequestHeader(r *Request, name, value string) error {
	if !validToken(name) {
		return fmt.Errorf("%w: '%s' is not a valid header name", ErrInvalidHeader, name)
	}
	value = strings.Trim(value, " \t\r\n")
	if strings.ContainsAny(value, "\r\n\x00") {
		return fmt.Errorf("%w: value for '%s' contains forbidden characters", ErrInvalidHeader, name)
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	if r.state != Opened || r.sent {
		return fmt.Errorf("%w: headers may only be set after open and before send", ErrInvalidState)
	}
	key := http.CanonicalHeaderKey(name)
	if prev := r.headers[key]; len(prev) > 0 {
		r.headers[key] = []string{prev[0] + ", " + value}
		return nil
	}
	r.headers[key] = []string{value}
	return nil
}

func send(r *Request, body any) error {
	r.mux.Lock()
	if r.state != Opened || r.sent {
		r.mux.Unlock()
		return fmt.Errorf("%w: send requires an opened request that hasn't been sent", ErrInvalidState)
	}
	req, cancel, err := r.buildRequest(body)
	if err != nil {
		r.mux.Unlock()
		return err
	}
	var (
		done  = make(chan struct{})
		gen   = r.generation
		async = r.async
	)
	r.sent = true
	r.cancel = cancel
	r.done = done
	r.mux.Unlock()

	r.owner().logger.Debug("Request sent", "request_id", r.id, "method", req.Method, "url", req.URL.String(), "async", async)
	r.fire(Event{Kind: EventLoadStart})
	if async {
		go r.transfer(req, cancel, gen, done)
		return nil
	}
	r.transfer(req, cancel, gen, done)
	return r.Err()
}

// buildRequest must be called with the write lock held.
func (r *Request) buildRequest(body any) (*http.Request, context.CancelFunc, error) {
	if r.method == http.MethodGet || r.method == http.MethodHead {
		body = nil
	}
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, nil, err
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.u.String(), payload)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header = r.headers.Clone()
	if len(contentType) > 0 && len(req.Header.Get(HeaderContentType)) == 0 {
		req.Header.Set(HeaderContentType, contentType)
	}
	if user, ok := r.user.Get(); ok {
		req.SetBasicAuth(user, r.password.Value)
	}
	return req, cancel, nil
}

// Abort cancels a transfer in progress, emitting [EventAbort].
// After Abort the request is [Unsent], and may be opened again.
func (r *Request) Abort() {
	r.mux.Lock()
	inFlight := r.sent && r.state != Done
	if !inFlight {
		if r.state == Done {
			r.state = Unsent
		}
		r.mux.Unlock()
		return
	}
	r.generation++
	gen := r.generation
	cancel := r.cancel
	r.cancel = nil
	r.sent = false
	r.resetResponse()
	r.err = ErrAborted
	r.state = Done
	r.mux.Unlock()

	if cancel != nil {
		cancel()
	}
	r.owner().logger.Debug("Request aborted", "request_id", r.id)
	r.fireKind(EventReadyStateChange)
	r.fireKind(EventAbort)
	r.fireKind(EventLoadEnd)

	r.mux.Lock()
	if r.generation == gen && r.state == Done {
		r.state = Unsent
	}
	r.mux.Unlock()
}

// resetResponse must be called with the write lock held.
func (r *Request) resetResponse() {
	r.status = 0
	r.statusText = ""
	r.respHeader = nil
	r.body.Reset()
	r.err = nil
}

// SetTimeout sets the maximum duration of a transfer, starting when Send is called.
// A duration <= 0 disables the timeout.
func (r *Request) SetTimeout(timeout time.Duration) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.timeout = timeout
}

// Wait blocks until the transfer started by the last call to Send has finished and notified listeners, or ctx is done.
// Wait returns immediately if the request has not been sent.
func (r *Request) Wait(ctx context.Context) error {
	r.mux.RLock()
	done := r.done
	r.mux.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attachment returns the value stored on the request under key.
// If nothing is stored yet and init is not nil, then the result of init is stored and returned.
//
// This allows other packages to associate state with a request for its lifetime.
func (r *Request) Attachment(key any, init func() any) any {
	r.attachMux.Lock()
	defer r.attachMux.Unlock()
	if val, ok := r.attachments[key]; ok {
		return val
	}
	if init == nil {
		return nil
	}
	val := init()
	if r.attachments == nil {
		r.attachments = map[any]any{}
	}
	r.attachments[key] = val
	return val
}

func (r *Request) ID() string {
	r.owner()
	return r.id
}

func (r *Request) ReadyState() ReadyState {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.state
}

func (r *Request) Method() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.method
}

// URL returns the URL given to Open, or an empty string if the request has not been opened.
func (r *Request) URL() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	if r.u == nil {
		return ""
	}
	return r.u.String()
}

func (r *Request) Async() bool {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.async
}

// Status returns the response status code, or 0 if no response has been received.
func (r *Request) Status() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.status
}

func (r *Request) StatusText() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.statusText
}

// ResponseHeader returns the first value of the named response header.
func (r *Request) ResponseHeader(name string) string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.respHeader.Get(name)
}

// ResponseHeaders returns a copy of all response headers.
func (r *Request) ResponseHeaders() http.Header {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.respHeader.Clone()
}

// ResponseText returns the response body received so far.
func (r *Request) ResponseText() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.body.String()
}

// ResponseBytes returns a copy of the response body received so far.
func (r *Request) ResponseBytes() []byte {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return bytes.Clone(r.body.Bytes())
}

// Err returns the reason the last transfer failed, if it did.
// The error will match one of [ErrNetwork], [ErrTimeout], or [ErrAborted] with [errors.Is].
func (r *Request) Err() error {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.err
}
