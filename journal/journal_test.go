package journal

import (
	"github.com/jonboulle/clockwork"
	"github.com/saylorsolutions/reqwatch/httpx"
	"github.com/saylorsolutions/reqwatch/patterns/eventbus"
	"github.com/saylorsolutions/reqwatch/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testJournal(opts ...Option) (*Journal, *eventbus.Bus) {
	bus := eventbus.NewBus()
	j := New(opts...)
	j.Attach(watch.New(bus).Watcher())
	return j, bus
}

func TestJournal_Attach(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer srv.Close()

	var (
		client = httpx.NewClient(httpx.WithHTTPClient(srv.Client()))
		i      = watch.New(nil)
		j      = New()
	)
	require.NoError(t, i.Install(client.Prototype()))
	j.Attach(i.Watcher())
	entries, unsubscribe := j.Subscribe()
	defer unsubscribe()

	req := client.NewRequest()
	require.NoError(t, req.Open(http.MethodPost, srv.URL+"/things", httpx.OpenArgs{Async: httpx.Some(false)}))
	require.NoError(t, req.SetRequestHeader("X-A", "1"))
	require.NoError(t, req.Send(map[string]string{"name": "thing"}))

	require.Equal(t, 1, j.Count())
	list := j.List(Filter{})
	require.Len(t, list, 1)
	entry := list[0]
	assert.Equal(t, req.ID(), entry.RequestID)
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, srv.URL+"/things", entry.URL)
	assert.Equal(t, map[string]string{"X-A": "1"}, entry.Headers)
	assert.Equal(t, `{"name":"thing"}`, entry.Body)
	assert.Equal(t, http.StatusCreated, entry.Status)
	assert.Equal(t, OutcomeLoad, entry.Outcome)
	assert.Empty(t, entry.Error)
	assert.True(t, entry.Done())
	require.NotEmpty(t, entry.Events)
	assert.Equal(t, watch.EventOpen, entry.Events[0].Event)
	assert.Equal(t, string(httpx.EventLoadEnd), entry.Events[len(entry.Events)-1].Event)

	select {
	case published := <-entries:
		assert.Equal(t, entry, published)
	default:
		t.Fatal("Expected the entry to be published at loadend")
	}

	got, ok := j.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestJournal_Durations(t *testing.T) {
	clock := clockwork.NewFakeClock()
	j, bus := testJournal(WithClock(clock))
	req := httpx.NewClient().NewRequest()
	start := clock.Now()

	bus.Trigger(watch.EventOpen, req)
	clock.Advance(time.Second)
	bus.Trigger(watch.EventSend, req)
	entry := j.List(Filter{})[0]
	assert.False(t, entry.Done())
	assert.Zero(t, entry.Duration(), "Unfinished entries have no duration")

	clock.Advance(2 * time.Second)
	bus.Trigger(string(httpx.EventLoadEnd), req)
	entry = j.List(Filter{})[0]
	assert.True(t, entry.Done())
	assert.Equal(t, 3*time.Second, entry.Duration())
	assert.Equal(t, start, entry.Started)
	assert.Equal(t, []Mark{
		{Event: watch.EventOpen, At: start},
		{Event: watch.EventSend, At: start.Add(time.Second)},
		{Event: string(httpx.EventLoadEnd), At: start.Add(3 * time.Second)},
	}, entry.Events)
}

func TestJournal_Capacity(t *testing.T) {
	j, bus := testJournal(WithCapacity(2))
	var ids []string
	for range 3 {
		req := httpx.NewClient().NewRequest()
		ids = append(ids, req.ID())
		bus.Trigger(watch.EventOpen, req)
		bus.Trigger(string(httpx.EventLoadEnd), req)
	}
	assert.Equal(t, 2, j.Count())

	list := j.List(Filter{})
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].RequestID, "Newest entries should be first")
	assert.Equal(t, ids[1], list[1].RequestID, "The oldest entry should be evicted")
}

func TestJournal_Reopen(t *testing.T) {
	j, bus := testJournal()
	req := httpx.NewClient().NewRequest()
	for range 2 {
		bus.Trigger(watch.EventOpen, req)
		bus.Trigger(string(httpx.EventLoadEnd), req)
	}
	list := j.List(Filter{})
	require.Len(t, list, 2, "Each round trip should be a separate entry")
	assert.Equal(t, list[0].RequestID, list[1].RequestID)
	assert.NotEqual(t, list[0].ID, list[1].ID)
}

func TestJournal_List_Filter(t *testing.T) {
	j, bus := testJournal()
	for _, outcome := range []Outcome{OutcomeLoad, OutcomeError, OutcomeLoad, OutcomeTimeout, OutcomeLoad} {
		req := httpx.NewClient().NewRequest()
		bus.Trigger(watch.EventOpen, req)
		bus.Trigger(string(outcome), req)
		bus.Trigger(string(httpx.EventLoadEnd), req)
	}

	tests := map[string]struct {
		filter   Filter
		expected int
	}{
		"All":         {filter: Filter{}, expected: 5},
		"Outcome":     {filter: Filter{Outcome: OutcomeLoad}, expected: 3},
		"Limit":       {filter: Filter{Outcome: OutcomeLoad, Limit: 2}, expected: 2},
		"Offset":      {filter: Filter{Outcome: OutcomeLoad, Offset: 2}, expected: 1},
		"Past end":    {filter: Filter{Offset: 10}, expected: 0},
		"Status":      {filter: Filter{Status: 200}, expected: 0},
		"Method":      {filter: Filter{Method: http.MethodGet}, expected: 0},
		"URL prefix":  {filter: Filter{URLPrefix: "http://"}, expected: 0},
		"Unsent zero": {filter: Filter{Status: 0, Outcome: OutcomeError}, expected: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Len(t, j.List(tc.filter), tc.expected)
		})
	}
}

func TestJournal_Clear(t *testing.T) {
	j, bus := testJournal()
	req := httpx.NewClient().NewRequest()
	bus.Trigger(watch.EventOpen, req)
	assert.Equal(t, 1, j.Count())
	id := j.List(Filter{})[0].ID

	j.Clear()
	assert.Equal(t, 0, j.Count())
	_, ok := j.Get(id)
	assert.False(t, ok)

	bus.Trigger(string(httpx.EventLoadEnd), req)
	assert.Equal(t, 1, j.Count(), "In progress requests should start a new entry")
}

func TestJournal_Subscribe(t *testing.T) {
	j, bus := testJournal()
	entries, unsubscribe := j.Subscribe()

	req := httpx.NewClient().NewRequest()
	bus.Trigger(watch.EventOpen, req)
	assert.Empty(t, entries, "Entries should only be published when finished")
	bus.Trigger(string(httpx.EventAbort), req)
	bus.Trigger(string(httpx.EventLoadEnd), req)
	require.Len(t, entries, 1)
	entry := <-entries
	assert.Equal(t, OutcomeAbort, entry.Outcome)

	unsubscribe()
	assert.NotPanics(t, unsubscribe)
	_, open := <-entries
	assert.False(t, open, "Unsubscribing should close the channel")

	bus.Trigger(watch.EventOpen, req)
	assert.NotPanics(t, func() {
		bus.Trigger(string(httpx.EventLoadEnd), req)
	})
}

func TestJournal_Subscribe_Full(t *testing.T) {
	j, bus := testJournal()
	entries, unsubscribe := j.Subscribe()
	defer unsubscribe()

	req := httpx.NewClient().NewRequest()
	for range subscriberBuffer + 5 {
		bus.Trigger(watch.EventOpen, req)
		bus.Trigger(string(httpx.EventLoadEnd), req)
	}
	assert.Len(t, entries, subscriberBuffer, "Slow subscribers should not block observation")
}

func TestDescribeBody(t *testing.T) {
	tests := map[string]struct {
		data     any
		expected string
	}{
		"Nil":      {data: nil, expected: ""},
		"String":   {data: "text", expected: "text"},
		"Bytes":    {data: []byte("raw"), expected: "raw"},
		"Form":     {data: url.Values{"a": {"1"}}, expected: "a=1"},
		"Reader":   {data: strings.NewReader("x"), expected: "<stream *strings.Reader>"},
		"JSON":     {data: []int{1, 2}, expected: "[1,2]"},
		"Fallback": {data: make(chan int), expected: "<chan>"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, describeBody(tc.data))
		})
	}
}
