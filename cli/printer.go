package cli

import (
	"encoding/json"
	"fmt"
	"golang.org/x/term"
	"io"
	"os"
	"sync"
)

// OutputMode controls how [Printer.Record] formats output.
type OutputMode int

const (
	ModeAuto OutputMode = iota // ModeAuto writes text to a terminal, and JSON lines otherwise.
	ModeText
	ModeJSON
)

// Printer writes user-visible output, to STDERR by default.
// It's safe for concurrent use.
type Printer struct {
	mux  sync.Mutex
	out  io.Writer
	mode OutputMode
}

func NewPrinter() *Printer {
	return &Printer{out: os.Stderr}
}

func (p *Printer) Redirect(writer io.Writer) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.out = writer
}

func (p *Printer) SetMode(mode OutputMode) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.mode = mode
}

// IsTerminal reports whether output is going to a terminal.
func (p *Printer) IsTerminal() bool {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.isTerminal()
}

func (p *Printer) isTerminal() bool {
	f, ok := p.out.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (p *Printer) jsonLines() bool {
	switch p.mode {
	case ModeJSON:
		return true
	case ModeText:
		return false
	default:
		return !p.isTerminal()
	}
}

// Record prints text for a human, or rec encoded as a JSON line, depending on the [OutputMode].
func (p *Printer) Record(text string, rec any) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if !p.jsonLines() {
		_, _ = fmt.Fprintln(p.out, text)
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		_, _ = fmt.Fprintf(p.out, "{\"error\":%q}\n", err.Error())
		return
	}
	_, _ = fmt.Fprintln(p.out, string(data))
}

// Write allows the Printer to be used as an [io.Writer].
func (p *Printer) Write(data []byte) (int, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.out.Write(data)
}

func (p *Printer) Print(msg ...any) {
	_, _ = fmt.Fprint(p, msg...)
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p, format, args...)
}

func (p *Printer) Println(msg ...any) {
	_, _ = fmt.Fprintln(p, msg...)
}
