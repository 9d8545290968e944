package watch

import (
	"github.com/saylorsolutions/reqwatch/httpx"
	"maps"
	"sync"
)

// Metadata is the accumulated description of an observed [httpx.Request].
// It's created the first time the request is opened or sent, and is never reset.
type Metadata struct {
	Method   string
	URL      string
	Async    httpx.Optional[bool]
	User     httpx.Optional[string]
	Password httpx.Optional[string]
	// Headers are keyed by the name exactly as it was given to SetRequestHeader.
	Headers map[string]string
	Data    any
}

func (m Metadata) clone() Metadata {
	m.Headers = maps.Clone(m.Headers)
	return m
}

type recordKey struct{}

type record struct {
	mux     sync.Mutex
	meta    Metadata
	forward sync.Once
}

func (r *record) update(fn func(meta *Metadata)) {
	r.mux.Lock()
	defer r.mux.Unlock()
	fn(&r.meta)
}

func recordOf(req *httpx.Request) *record {
	return req.Attachment(recordKey{}, func() any {
		return &record{
			meta: Metadata{Headers: map[string]string{}},
		}
	}).(*record)
}

// MetadataOf returns a copy of the [Metadata] captured for req.
// The second return value is false if req has not been opened or sent through an installed [Interceptor].
func MetadataOf(req *httpx.Request) (Metadata, bool) {
	if req == nil {
		return Metadata{}, false
	}
	rec, ok := req.Attachment(recordKey{}, nil).(*record)
	if !ok {
		return Metadata{}, false
	}
	rec.mux.Lock()
	defer rec.mux.Unlock()
	return rec.meta.clone(), true
}
