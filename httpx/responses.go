package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ReadChunkSize is the size of the buffer used to read response bodies.
// A progress event is emitted for each successful read.
var ReadChunkSize = 32 * 1024

func (r *Request) transfer(req *http.Request, cancel context.CancelFunc, gen uint64, done chan struct{}) {
	defer close(done)
	defer cancel()
	start := time.Now()
	resp, err := r.owner().http.Do(req)
	if err != nil {
		r.fail(req.Context(), gen, err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !r.update(gen, func() {
		r.status = resp.StatusCode
		r.statusText = strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
		r.respHeader = resp.Header
		r.state = HeadersReceived
	}) {
		return
	}
	r.fireKind(EventReadyStateChange)

	var (
		total      = resp.ContentLength
		computable = total >= 0
		loaded     int64
		buf        = make([]byte, ReadChunkSize)
	)
	if !computable {
		total = 0
	}
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			var firstChunk bool
			if !r.update(gen, func() {
				r.body.Write(buf[:n])
				loaded += int64(n)
				if r.state == HeadersReceived {
					r.state = Loading
					firstChunk = true
				}
			}) {
				return
			}
			if firstChunk {
				r.fireKind(EventReadyStateChange)
			}
			r.fire(Event{Kind: EventProgress, Loaded: loaded, Total: total, LengthComputable: computable})
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			r.fail(req.Context(), gen, readErr)
			return
		}
	}

	if !r.update(gen, func() {
		r.state = Done
		r.sent = false
		r.cancel = nil
	}) {
		return
	}
	r.owner().logger.Debug("Request complete", "request_id", r.id, "status", resp.StatusCode, "bytes", loaded, "duration", time.Since(start))
	r.fireKind(EventReadyStateChange)
	r.fire(Event{Kind: EventLoad, Loaded: loaded, Total: total, LengthComputable: computable})
	r.fire(Event{Kind: EventLoadEnd, Loaded: loaded, Total: total, LengthComputable: computable})
}

// update applies fn with the write lock held, unless the transfer identified by gen has been abandoned by Open or Abort.
func (r *Request) update(gen uint64, fn func()) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.generation != gen {
		return false
	}
	fn()
	return true
}

func (r *Request) fail(ctx context.Context, gen uint64, cause error) {
	var (
		kind = EventError
		err  = fmt.Errorf("%w: %v", ErrNetwork, cause)
	)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = EventTimeout
		err = fmt.Errorf("%w: %v", ErrTimeout, cause)
	}
	if !r.update(gen, func() {
		r.resetResponse()
		r.err = err
		r.state = Done
		r.sent = false
		r.cancel = nil
	}) {
		return
	}
	r.owner().logger.Warn("Request failed", "request_id", r.id, "event", string(kind), "error", cause)
	r.fireKind(EventReadyStateChange)
	r.fireKind(kind)
	r.fireKind(EventLoadEnd)
}

// ReadJSON decodes the response body received by r as JSON.
// This should be called after the request is [Done].
func ReadJSON[T any](r *Request) (*T, error) {
	if state := r.ReadyState(); state != Done {
		return nil, fmt.Errorf("%w: response is not complete (%s)", ErrInvalidState, state)
	}
	var val T
	if err := json.NewDecoder(bytes.NewReader(r.ResponseBytes())).Decode(&val); err != nil {
		return nil, err
	}
	return &val, nil
}
