package httpx

import (
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

const testWaitTimeout = 2 * time.Second

type eventRecorder struct {
	mux    sync.Mutex
	events []Event
}

func (e *eventRecorder) listen(r *Request) {
	for _, kind := range LifecycleEvents {
		r.AddEventListener(kind, func(evt Event) {
			e.mux.Lock()
			defer e.mux.Unlock()
			e.events = append(e.events, evt)
		})
	}
}

// kinds returns the recorded event kinds, with consecutive progress events collapsed since chunking is up to the transport.
func (e *eventRecorder) kinds() []string {
	e.mux.Lock()
	defer e.mux.Unlock()
	var kinds []string
	for _, evt := range e.events {
		kind := string(evt.Kind)
		if kind == string(EventProgress) && len(kinds) > 0 && kinds[len(kinds)-1] == kind {
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

func (e *eventRecorder) last(kind EventKind) (Event, bool) {
	e.mux.Lock()
	defer e.mux.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].Kind == kind {
			return e.events[i], true
		}
	}
	return Event{}, false
}

func testServer(t *testing.T) (*httptest.Server, *Client) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("all good!"))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		w.Header().Set(HeaderContentType, ContentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method":      r.Method,
			"contentType": r.Header.Get(HeaderContentType),
			"headerA":     r.Header.Get("X-A"),
			"body":        string(body),
			"user":        user,
			"pass":        pass,
		})
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(testWaitTimeout):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewClient(WithHTTPClient(srv.Client()))
}

func waitFor(t *testing.T, r *Request) {
	ctx, cancel := context.WithTimeout(context.Background(), testWaitTimeout)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestRequest_Lifecycle(t *testing.T) {
	srv, client := testServer(t)
	var (
		rec = new(eventRecorder)
		req = client.NewRequest()
	)
	assert.NotEmpty(t, req.ID())
	assert.Equal(t, Unsent, req.ReadyState())

	rec.listen(req)
	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/test", OpenArgs{}))
	assert.Equal(t, Opened, req.ReadyState())
	assert.Equal(t, srv.URL+"/test", req.URL())
	assert.True(t, req.Async(), "Requests should be async by default")

	require.NoError(t, req.Send(nil))
	waitFor(t, req)

	assert.Equal(t, []string{
		"readystatechange",
		"loadstart",
		"readystatechange",
		"readystatechange",
		"progress",
		"readystatechange",
		"load",
		"loadend",
	}, rec.kinds())
	assert.Equal(t, Done, req.ReadyState())
	assert.Equal(t, 200, req.Status())
	assert.Equal(t, "OK", req.StatusText())
	assert.Equal(t, "all good!", req.ResponseText())
	assert.NoError(t, req.Err())

	load, ok := rec.last(EventLoad)
	require.True(t, ok)
	assert.Same(t, req, load.Target)
	assert.Equal(t, int64(9), load.Loaded)
	assert.True(t, load.LengthComputable)
	assert.Equal(t, int64(9), load.Total)
}

func TestRequest_Sync(t *testing.T) {
	srv, client := testServer(t)
	var (
		rec = new(eventRecorder)
		req = client.NewRequest()
	)
	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/test", OpenArgs{Async: Some(false)}))
	rec.listen(req)
	require.NoError(t, req.Send(nil))
	assert.Equal(t, Done, req.ReadyState(), "Sync requests should be complete when Send returns")
	assert.Equal(t, "all good!", req.ResponseText())
	assert.Equal(t, "loadend", rec.kinds()[len(rec.kinds())-1])
}

func TestRequest_Body(t *testing.T) {
	srv, client := testServer(t)
	tests := map[string]struct {
		method      string
		body        any
		contentType string
		expected    string
	}{
		"String": {
			method:      http.MethodPost,
			body:        "hello",
			contentType: ContentTypeText,
			expected:    "hello",
		},
		"Bytes": {
			method:   http.MethodPut,
			body:     []byte("raw"),
			expected: "raw",
		},
		"Reader": {
			method:   http.MethodPost,
			body:     strings.NewReader("streamed"),
			expected: "streamed",
		},
		"Map": {
			method:      http.MethodPost,
			body:        map[string][]string{"name": {"bob"}},
			contentType: ContentTypeJSON,
			expected:    `{"name":["bob"]}`,
		},
		"JSON": {
			method:      "PATCH",
			body:        map[string]any{"payload": "payload"},
			contentType: ContentTypeJSON,
			expected:    `{"payload":"payload"}`,
		},
		"Ignored for GET": {
			method:   http.MethodGet,
			body:     "ignored",
			expected: "",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := client.NewRequest()
			require.NoError(t, req.Open(tc.method, srv.URL+"/echo", OpenArgs{Async: Some(false)}))
			require.NoError(t, req.Send(tc.body))
			echo, err := ReadJSON[map[string]any](req)
			require.NoError(t, err)
			assert.Equal(t, tc.method, (*echo)["method"])
			assert.Equal(t, tc.expected, (*echo)["body"])
			assert.Equal(t, tc.contentType, (*echo)["contentType"])
		})
	}
}

func TestRequest_FormValues(t *testing.T) {
	srv, client := testServer(t)
	req := client.NewRequest()
	require.NoError(t, req.Open(http.MethodPost, srv.URL+"/echo", OpenArgs{Async: Some(false)}))
	require.NoError(t, req.Send(url.Values{"name": {"bob"}}))
	echo, err := ReadJSON[map[string]any](req)
	require.NoError(t, err)
	assert.Equal(t, "name=bob", (*echo)["body"])
	assert.Equal(t, ContentTypeForm, (*echo)["contentType"])
}

func TestRequest_SetRequestHeader(t *testing.T) {
	srv, client := testServer(t)
	req := client.NewRequest()

	assert.ErrorIs(t, req.SetRequestHeader("X-A", "1"), ErrInvalidState, "Headers can't be set before open")
	require.NoError(t, req.Open(http.MethodPost, srv.URL+"/echo", OpenArgs{Async: Some(false)}))
	assert.ErrorIs(t, req.SetRequestHeader("Bad Header", "1"), ErrInvalidHeader)
	assert.ErrorIs(t, req.SetRequestHeader("X-B", "a\nb"), ErrInvalidHeader)
	require.NoError(t, req.SetRequestHeader("x-a", "1"))
	require.NoError(t, req.SetRequestHeader("X-A", " 2 "))
	require.NoError(t, req.SetRequestHeader(HeaderContentType, "application/custom"))
	require.NoError(t, req.Send("body"))

	echo, err := ReadJSON[map[string]any](req)
	require.NoError(t, err)
	assert.Equal(t, "1, 2", (*echo)["headerA"], "Repeated headers should be combined")
	assert.Equal(t, "application/custom", (*echo)["contentType"], "Explicit content type should win")
	assert.ErrorIs(t, req.SetRequestHeader("X-A", "3"), ErrInvalidState, "Headers can't be set after send")
}

func TestRequest_Open_Invalid(t *testing.T) {
	_, client := testServer(t)
	req := client.NewRequest()

	assert.ErrorIs(t, req.Open("GE T", "http://localhost/", OpenArgs{}), ErrInvalidMethod)
	assert.ErrorIs(t, req.Open("", "http://localhost/", OpenArgs{}), ErrInvalidMethod)
	assert.ErrorIs(t, req.Open("connect", "http://localhost/", OpenArgs{}), ErrInvalidMethod)
	assert.ErrorIs(t, req.Open(http.MethodGet, "/relative", OpenArgs{}), ErrInvalidURL)
	assert.ErrorIs(t, req.Open(http.MethodGet, "http://[::1", OpenArgs{}), ErrInvalidURL)
	assert.Equal(t, Unsent, req.ReadyState(), "Failed opens should not change state")

	require.NoError(t, req.Open("get", "http://localhost/", OpenArgs{}))
	assert.Equal(t, http.MethodGet, req.Method(), "Well known methods should be normalized")
	require.NoError(t, req.Open("patch", "http://localhost/", OpenArgs{}))
	assert.Equal(t, "patch", req.Method(), "Other methods are left as given")
}

func TestRequest_Send_InvalidState(t *testing.T) {
	srv, client := testServer(t)
	req := client.NewRequest()
	assert.ErrorIs(t, req.Send(nil), ErrInvalidState, "Can't send before open")

	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/test", OpenArgs{Async: Some(false)}))
	require.NoError(t, req.Send(nil))
	assert.ErrorIs(t, req.Send(nil), ErrInvalidState, "Can't send twice without reopening")

	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/test", OpenArgs{Async: Some(false)}))
	assert.Equal(t, 0, req.Status(), "Open should reset the response")
	require.NoError(t, req.Send(nil))
	assert.Equal(t, 200, req.Status())
}

func TestRequest_BasicAuth(t *testing.T) {
	srv, client := testServer(t)
	req := client.NewRequest()
	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/echo", OpenArgs{
		Async:    Some(false),
		User:     Some("jamesbaxter"),
		Password: Some("neigh"),
	}))
	require.NoError(t, req.Send(nil))
	echo, err := ReadJSON[map[string]any](req)
	require.NoError(t, err)
	assert.Equal(t, "jamesbaxter", (*echo)["user"])
	assert.Equal(t, "neigh", (*echo)["pass"])
}

func TestRequest_Timeout(t *testing.T) {
	srv, client := testServer(t)
	var (
		rec = new(eventRecorder)
		req = client.NewRequest()
	)
	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/slow", OpenArgs{}))
	req.SetTimeout(50 * time.Millisecond)
	rec.listen(req)
	require.NoError(t, req.Send(nil))
	waitFor(t, req)

	assert.Equal(t, []string{"loadstart", "readystatechange", "timeout", "loadend"}, rec.kinds())
	assert.ErrorIs(t, req.Err(), ErrTimeout)
	assert.Equal(t, Done, req.ReadyState())
	assert.Equal(t, 0, req.Status())
}

func TestRequest_ZeroValue(t *testing.T) {
	srv, _ := testServer(t)
	req := new(Request)
	assert.NotEmpty(t, req.ID(), "A zero Request should be given an ID")
	assert.NotPanics(t, req.Abort)

	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/test", OpenArgs{Async: Some(false)}))
	require.NoError(t, req.Send(nil))
	assert.Equal(t, http.StatusOK, req.Status())
	assert.Equal(t, "all good!", req.ResponseText())
	assert.Same(t, defaultClient(), req.owner())
}

func TestRequest_Abort(t *testing.T) {
	srv, client := testServer(t)
	var (
		rec = new(eventRecorder)
		req = client.NewRequest()
	)
	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/slow", OpenArgs{}))
	rec.listen(req)
	require.NoError(t, req.Send(nil))
	req.Abort()
	waitFor(t, req)

	assert.Equal(t, []string{"loadstart", "readystatechange", "abort", "loadend"}, rec.kinds())
	assert.ErrorIs(t, req.Err(), ErrAborted)
	assert.Equal(t, Unsent, req.ReadyState())

	assert.NotPanics(t, req.Abort, "Aborting an idle request is a no-op")
	assert.Len(t, rec.kinds(), 4)
}

func TestRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	var (
		rec    = new(eventRecorder)
		client = NewClient(WithHTTPClient(&http.Client{Transport: &http.Transport{}}))
		req    = client.NewRequest()
	)
	require.NoError(t, req.Open(http.MethodGet, addr, OpenArgs{Async: Some(false)}))
	rec.listen(req)
	err := req.Send(nil)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, []string{"loadstart", "readystatechange", "error", "loadend"}, rec.kinds())
	assert.Equal(t, Done, req.ReadyState())
}

func TestRequest_Attachment(t *testing.T) {
	type key struct{}
	var (
		req   = NewClient().NewRequest()
		calls int
	)
	initFn := func() any {
		calls++
		return &calls
	}
	assert.Nil(t, req.Attachment(key{}, nil))
	first := req.Attachment(key{}, initFn)
	second := req.Attachment(key{}, initFn)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls, "Init should only be called once")
}

func TestPrototype_Replace(t *testing.T) {
	srv, _ := testServer(t)
	var (
		proto  = NewPrototype()
		client = NewClient(WithHTTPClient(srv.Client()), WithPrototype(proto))
		req    = client.NewRequest()
		sends  int
	)
	require.NoError(t, req.Open(http.MethodGet, srv.URL+"/test", OpenArgs{Async: Some(false)}))

	orig := proto.Send
	proto.Send = func(r *Request, body any) error {
		sends++
		return orig(r, body)
	}
	require.NoError(t, req.Send(nil), "Existing requests should use the replaced operation")
	assert.Equal(t, 1, sends)
	assert.Equal(t, "all good!", req.ResponseText())
}

func TestPrototype_Fill(t *testing.T) {
	proto := &Prototype{}
	client := NewClient(WithPrototype(proto))
	assert.Same(t, proto, client.Prototype())
	assert.NotNil(t, proto.Open)
	assert.NotNil(t, proto.SetRequestHeader)
	assert.NotNil(t, proto.Send)
}

func TestOptional(t *testing.T) {
	var unset Optional[string]
	_, ok := unset.Get()
	assert.False(t, ok)
	assert.Equal(t, "default", unset.Or("default"))

	empty := Some("")
	val, ok := empty.Get()
	assert.True(t, ok, "An empty value is still provided")
	assert.Equal(t, "", val)
	assert.Equal(t, "", empty.Or("default"))
}

func TestReadJSON_NotDone(t *testing.T) {
	req := NewClient().NewRequest()
	_, err := ReadJSON[map[string]any](req)
	assert.ErrorIs(t, err, ErrInvalidState)
}
