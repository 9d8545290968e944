package httpx

import (
	"github.com/google/uuid"
	"io"
	"log/slog"
	"net/http"
)

// Client creates [Request] values that share a [Prototype], an [http.Client], and a logger.
type Client struct {
	proto  *Prototype
	http   *http.Client
	logger *slog.Logger
}

type ClientOption func(c *Client)

// WithHTTPClient overrides the default [http.Client] used to perform transfers.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithPrototype sets the [Prototype] shared by requests from the [Client].
// Missing operations are filled with base implementations.
func WithPrototype(proto *Prototype) ClientOption {
	return func(c *Client) {
		if proto != nil {
			c.proto = proto.fill()
		}
	}
}

// WithLogger sets the logger used for request debugging output.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a [Client].
// By default, it uses [http.DefaultClient], a new [Prototype], and discards log output.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		proto:  NewPrototype(),
		http:   http.DefaultClient,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prototype returns the [Prototype] shared by requests from this [Client].
func (c *Client) Prototype() *Prototype {
	return c.proto
}

// NewRequest creates an [Unsent] [Request] with a unique ID.
func (c *Client) NewRequest() *Request {
	return &Request{
		id:     uuid.NewString(),
		client: c,
	}
}
