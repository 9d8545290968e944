package main

import (
	"context"
	"github.com/saylorsolutions/reqwatch/cli"
	"github.com/saylorsolutions/reqwatch/httpx"
	"github.com/saylorsolutions/reqwatch/journal"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testSession(t *testing.T, transport http.RoundTripper) *session {
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	registerSessionFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))
	printer := cli.NewPrinter()
	printer.Redirect(io.Discard)
	s, err := newSession(flags, printer, io.Discard, transport)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSession_Do_Cancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	tests := map[string]httpx.Optional[bool]{
		"Async": httpx.Some(true),
		"Sync":  httpx.Some(false),
	}
	for name, async := range tests {
		t.Run(name, func(t *testing.T) {
			s := testSession(t, srv.Client().Transport)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			time.AfterFunc(50*time.Millisecond, cancel)

			start := time.Now()
			req, err := s.do(ctx, requestSpec{Method: http.MethodGet, URL: srv.URL, Async: async})
			assert.ErrorIs(t, err, context.Canceled)
			assert.ErrorIs(t, req.Err(), httpx.ErrAborted)
			assert.Less(t, time.Since(start), 2*time.Second, "Cancellation should abort the request")

			entries := s.journal.List(journal.Filter{})
			require.Len(t, entries, 1)
			assert.Equal(t, journal.OutcomeAbort, entries[0].Outcome)
		})
	}
}
