package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"time"
)

// Outcome describes how an observed request finished.
type Outcome string

const (
	OutcomePending Outcome = ""
	OutcomeLoad    Outcome = "load"
	OutcomeError   Outcome = "error"
	OutcomeAbort   Outcome = "abort"
	OutcomeTimeout Outcome = "timeout"
)

// Mark records when an event was observed.
type Mark struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}

// Entry captures one observed request, from open to loadend.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// RequestID identifies the request that was observed.
	// A request that is opened again after finishing produces a new entry with the same RequestID.
	RequestID string `json:"requestID"`

	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`

	// Body is a textual rendition of the data given to send.
	Body string `json:"body,omitempty"`

	// Status is the response status code, or 0 if no response was received.
	Status int `json:"status"`

	Events   []Mark    `json:"events"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Outcome  Outcome   `json:"outcome,omitempty"`

	// Error contains the error message if the request failed.
	Error string `json:"error,omitempty"`
}

// Duration returns the time between the first and last observation of a finished entry.
// Zero is returned if the entry is not finished.
func (e Entry) Duration() time.Duration {
	if e.Finished.IsZero() {
		return 0
	}
	return e.Finished.Sub(e.Started)
}

// Done reports whether the request reached loadend.
func (e Entry) Done() bool {
	return !e.Finished.IsZero()
}

func (e *Entry) clone() Entry {
	c := *e
	c.Headers = maps.Clone(e.Headers)
	c.Events = slices.Clone(e.Events)
	return c
}

func describeBody(data any) string {
	switch d := data.(type) {
	case nil:
		return ""
	case string:
		return d
	case []byte:
		return string(d)
	case url.Values:
		return d.Encode()
	case io.Reader:
		return fmt.Sprintf("<stream %T>", d)
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprintf("<%s>", reflect.TypeOf(d).Kind())
		}
		return string(raw)
	}
}
