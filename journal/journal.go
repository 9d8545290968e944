// Package journal keeps a bounded history of requests observed through a [watch.Watcher].
package journal

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/saylorsolutions/reqwatch/httpx"
	"github.com/saylorsolutions/reqwatch/patterns/eventbus"
	"github.com/saylorsolutions/reqwatch/watch"
	"strings"
	"sync"
)

const (
	DefaultCapacity  = 1000
	subscriberBuffer = 16
)

// Filter defines criteria for listing entries.
// Zero values match everything.
type Filter struct {
	// Method matches the request method exactly.
	Method string

	// URLPrefix matches the start of the request URL.
	URLPrefix string

	Outcome Outcome
	Status  int

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of matching entries to skip.
	Offset int
}

func (f Filter) matches(e *Entry) bool {
	switch {
	case len(f.Method) > 0 && e.Method != f.Method:
		return false
	case len(f.URLPrefix) > 0 && !strings.HasPrefix(e.URL, f.URLPrefix):
		return false
	case len(f.Outcome) > 0 && e.Outcome != f.Outcome:
		return false
	case f.Status != 0 && e.Status != f.Status:
		return false
	}
	return true
}

// Journal records an [Entry] for each observed request.
// When the capacity is exceeded, the oldest entries are evicted.
type Journal struct {
	clock    clockwork.Clock
	capacity int

	mux     sync.Mutex
	entries []*Entry // oldest first
	byID    map[string]*Entry
	active  map[string]*Entry // keyed by request ID
	subs    map[int]chan Entry
	nextSub int
}

type Option func(j *Journal)

// WithCapacity sets the maximum number of entries retained.
// Values < 1 are ignored.
func WithCapacity(capacity int) Option {
	return func(j *Journal) {
		if capacity > 0 {
			j.capacity = capacity
		}
	}
}

// WithClock sets the clock used to timestamp observations.
func WithClock(clock clockwork.Clock) Option {
	return func(j *Journal) {
		if clock != nil {
			j.clock = clock
		}
	}
}

func New(opts ...Option) *Journal {
	j := &Journal{
		clock:    clockwork.NewRealClock(),
		capacity: DefaultCapacity,
		byID:     map[string]*Entry{},
		active:   map[string]*Entry{},
		subs:     map[int]chan Entry{},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Attach subscribes the Journal to every event published through w.
func (j *Journal) Attach(w watch.Watcher) {
	w.On(eventbus.All, watch.RequestFunc(j.observe))
}

func (j *Journal) observe(event string, r *httpx.Request) {
	if len(event) == 0 || r == nil {
		return
	}
	j.mux.Lock()
	defer j.mux.Unlock()
	now := j.clock.Now()
	e, ok := j.active[r.ID()]
	if !ok {
		e = j.begin(r.ID())
		e.Started = now
	}
	e.Events = append(e.Events, Mark{Event: event, At: now})

	switch event {
	case watch.EventOpen, watch.EventSend:
		if meta, ok := watch.MetadataOf(r); ok {
			e.Method = meta.Method
			e.URL = meta.URL
			e.Headers = meta.Headers
			if event == watch.EventSend {
				e.Body = describeBody(meta.Data)
			}
		}
	case string(httpx.EventLoad), string(httpx.EventError), string(httpx.EventAbort), string(httpx.EventTimeout):
		e.Outcome = Outcome(event)
		e.Status = r.Status()
		if err := r.Err(); err != nil {
			e.Error = err.Error()
		}
	case string(httpx.EventLoadEnd):
		e.Finished = now
		delete(j.active, r.ID())
		j.publish(e.clone())
	}
}

// begin must be called with the lock held.
func (j *Journal) begin(requestID string) *Entry {
	e := &Entry{
		ID:        uuid.NewString(),
		RequestID: requestID,
	}
	j.entries = append(j.entries, e)
	j.byID[e.ID] = e
	j.active[requestID] = e
	for len(j.entries) > j.capacity {
		oldest := j.entries[0]
		j.entries[0] = nil
		j.entries = j.entries[1:]
		delete(j.byID, oldest.ID)
		if j.active[oldest.RequestID] == oldest {
			delete(j.active, oldest.RequestID)
		}
	}
	return e
}

// publish must be called with the lock held.
// Subscribers that aren't keeping up miss the entry.
func (j *Journal) publish(e Entry) {
	for _, ch := range j.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Get returns the entry with the given ID.
func (j *Journal) Get(id string) (Entry, bool) {
	j.mux.Lock()
	defer j.mux.Unlock()
	e, ok := j.byID[id]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// List returns entries matching the filter, newest first.
func (j *Journal) List(filter Filter) []Entry {
	j.mux.Lock()
	defer j.mux.Unlock()
	var (
		result  []Entry
		skipped int
	)
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		if !filter.matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, e.clone())
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

func (j *Journal) Count() int {
	j.mux.Lock()
	defer j.mux.Unlock()
	return len(j.entries)
}

// Clear removes all entries.
// Requests in progress start a new entry with their next event.
func (j *Journal) Clear() {
	j.mux.Lock()
	defer j.mux.Unlock()
	j.entries = nil
	j.byID = map[string]*Entry{}
	j.active = map[string]*Entry{}
}

// Subscribe returns a channel that receives each entry as its request reaches loadend, and a function to unsubscribe.
// Entries are dropped for subscribers that don't keep up.
func (j *Journal) Subscribe() (<-chan Entry, func()) {
	j.mux.Lock()
	defer j.mux.Unlock()
	var (
		id   = j.nextSub
		ch   = make(chan Entry, subscriberBuffer)
		once sync.Once
	)
	j.nextSub++
	j.subs[id] = ch
	return ch, func() {
		once.Do(func() {
			j.mux.Lock()
			defer j.mux.Unlock()
			delete(j.subs, id)
			close(ch)
		})
	}
}
