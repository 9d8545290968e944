// Command reqwatch performs HTTP requests through an intercepted client, and reports each lifecycle event as it happens.
package main

import (
	"context"
	"errors"
	"github.com/saylorsolutions/reqwatch/cli"
	"github.com/saylorsolutions/reqwatch/signalx"
	"io"
	"net/http"
	"os"
	"syscall"
)

func main() {
	ctx, stop := signalx.ExitContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := cli.NewPrinter()
	set := newCommandSet(printer, os.Stdout, nil)
	if err := set.Exec(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, &cli.UsageError{}) {
			printer.Println("Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// newCommandSet creates the reqwatch commands.
// Response bodies are written to stdout, and requests use transport, or [http.DefaultTransport] if it's nil.
func newCommandSet(printer *cli.Printer, stdout io.Writer, transport http.RoundTripper) *cli.CommandSet {
	set := cli.NewCommandSet("reqwatch", printer)
	addFetchCommand(set, stdout, transport)
	addRunCommand(set, stdout, transport)
	return set
}
