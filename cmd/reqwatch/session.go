package main

import (
	"context"
	"fmt"
	"github.com/saylorsolutions/reqwatch/cli"
	"github.com/saylorsolutions/reqwatch/config"
	"github.com/saylorsolutions/reqwatch/httpx"
	"github.com/saylorsolutions/reqwatch/journal"
	"github.com/saylorsolutions/reqwatch/patterns/eventbus"
	"github.com/saylorsolutions/reqwatch/watch"
	flag "github.com/spf13/pflag"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

const flagJSON = "json"

// session wires a client, interceptor, and journal together for one command invocation.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	client  *httpx.Client
	journal *journal.Journal
	printer *cli.Printer
	stdout  io.Writer
	closeFn func() error

	labels sync.Map // request ID -> label
}

type eventRecord struct {
	Time    time.Time `json:"time"`
	Label   string    `json:"label,omitempty"`
	Request string    `json:"request"`
	Event   string    `json:"event"`
	Method  string    `json:"method,omitempty"`
	URL     string    `json:"url,omitempty"`
	State   string    `json:"state"`
	Status  int       `json:"status,omitempty"`
}

func registerSessionFlags(flags *flag.FlagSet) {
	config.RegisterFlags(flags)
	flags.Bool(flagJSON, false, "Print events as JSON lines, even to a terminal")
}

func newSession(flags *flag.FlagSet, printer *cli.Printer, stdout io.Writer, transport http.RoundTripper) (*session, error) {
	cfg, err := config.FromFlags(flags)
	if err != nil {
		return nil, cli.NewUsageError("%w", err)
	}
	log, closeLog, err := cfg.Logger(printer)
	if err != nil {
		return nil, err
	}
	if cli.MustGet(flags.GetBool(flagJSON)) {
		printer.SetMode(cli.ModeJSON)
	}

	var (
		bus = eventbus.NewBus()
		s   = &session{
			cfg:     cfg,
			log:     log,
			journal: journal.New(journal.WithCapacity(cfg.JournalSize)),
			printer: printer,
			stdout:  stdout,
			closeFn: closeLog,
		}
		interceptor = watch.New(bus, watch.WithLogger(log))
	)
	s.client = httpx.NewClient(
		httpx.WithHTTPClient(&http.Client{Transport: transport}),
		httpx.WithLogger(log),
	)
	if err := interceptor.Install(s.client.Prototype()); err != nil {
		_ = closeLog()
		return nil, err
	}
	s.journal.Attach(interceptor.Watcher())

	wanted := strings.Fields(cfg.Events)
	everything := slices.Contains(wanted, eventbus.All)
	interceptor.Watcher().On(eventbus.All, watch.RequestFunc(func(event string, r *httpx.Request) {
		if everything || slices.Contains(wanted, event) {
			s.report(event, r)
		}
	}))
	return s, nil
}

// Close releases the log file, if one was configured.
func (s *session) Close() error {
	return s.closeFn()
}

func (s *session) report(event string, r *httpx.Request) {
	rec := eventRecord{
		Time:    time.Now(),
		Label:   s.label(r),
		Request: r.ID(),
		Event:   event,
		State:   r.ReadyState().String(),
		Status:  r.Status(),
	}
	if meta, ok := watch.MetadataOf(r); ok {
		rec.Method = meta.Method
		rec.URL = meta.URL
	}
	name := rec.Label
	if len(name) == 0 {
		name = rec.Request[:8]
	}
	text := fmt.Sprintf("%s %-12s %-16s %-16s %s %s",
		rec.Time.Format("15:04:05.000"), name, event, rec.State, rec.Method, rec.URL)
	if rec.Status > 0 {
		text += fmt.Sprintf(" (%d)", rec.Status)
	}
	s.printer.Record(strings.TrimSpace(text), rec)
}

func (s *session) label(r *httpx.Request) string {
	if label, ok := s.labels.Load(r.ID()); ok {
		return label.(string)
	}
	return ""
}

// requestSpec describes a request to perform.
type requestSpec struct {
	Label   string
	Method  string
	URL     string
	Headers [][2]string
	Body    any
	Async   httpx.Optional[bool]
	User    httpx.Optional[string]
	Pass    httpx.Optional[string]
	Timeout time.Duration
}

// do performs a request and waits for it to finish.
// If ctx is cancelled first, then the request is aborted and the context error is returned.
// Transfer failures are reported by the request, and are not returned.
func (s *session) do(ctx context.Context, spec requestSpec) (*httpx.Request, error) {
	req := s.client.NewRequest()
	if len(spec.Label) > 0 {
		s.labels.Store(req.ID(), spec.Label)
	}
	err := req.Open(spec.Method, spec.URL, httpx.OpenArgs{
		Async:    spec.Async,
		User:     spec.User,
		Password: spec.Pass,
	})
	if err != nil {
		return req, err
	}
	for _, header := range spec.Headers {
		if err := req.SetRequestHeader(header[0], header[1]); err != nil {
			return req, err
		}
	}
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = s.cfg.Timeout
	}
	req.SetTimeout(timeout)

	// Abort when ctx is done, even while a synchronous Send is blocked.
	var (
		finished = make(chan struct{})
		watching = make(chan struct{})
	)
	go func() {
		defer close(watching)
		select {
		case <-ctx.Done():
			req.Abort()
		case <-finished:
		}
	}()
	defer func() {
		close(finished)
		<-watching
	}()

	if err := req.Send(spec.Body); err != nil && req.Err() == nil {
		return req, err
	}
	if err := req.Wait(ctx); err != nil {
		req.Abort()
		return req, err
	}
	if err := ctx.Err(); err != nil {
		req.Abort()
		return req, err
	}
	return req, nil
}

// summarize prints each finished journal entry, oldest first.
func (s *session) summarize() {
	entries := s.journal.List(journal.Filter{})
	slices.Reverse(entries)
	for _, e := range entries {
		label, _ := s.labels.Load(e.RequestID)
		name, _ := label.(string)
		if len(name) == 0 {
			name = e.RequestID[:8]
		}
		outcome := string(e.Outcome)
		if len(outcome) == 0 {
			outcome = "pending"
		}
		s.printer.Record(
			fmt.Sprintf("%-12s %-7s %s %d %s in %s", name, e.Method, e.URL, e.Status, outcome, e.Duration().Round(time.Millisecond)),
			e,
		)
	}
}
