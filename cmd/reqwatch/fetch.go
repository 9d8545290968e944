package main

import (
	"context"
	"github.com/saylorsolutions/reqwatch/cli"
	"github.com/saylorsolutions/reqwatch/httpx"
	flag "github.com/spf13/pflag"
	"io"
	"net/http"
	"strings"
)

const (
	flagMethod = "method"
	flagHeader = "header"
	flagData   = "data"
	flagUser   = "user"
	flagSync   = "sync"
)

func addFetchCommand(set *cli.CommandSet, stdout io.Writer, transport http.RoundTripper) {
	cmd := set.AddCommand("fetch", "Performs a single request, reporting its lifecycle events")
	cmd.Usage("[FLAGS] URL")
	flags := cmd.Flags()
	flags.StringP(flagMethod, "X", http.MethodGet, "HTTP method")
	flags.StringArrayP(flagHeader, "H", nil, "Request header as 'Name: value', may be repeated")
	flags.StringP(flagData, "d", "", "Request body")
	flags.StringP(flagUser, "u", "", "Basic auth credentials as 'user:password'")
	flags.Bool(flagSync, false, "Send the request synchronously")
	registerSessionFlags(flags)

	cmd.Does(func(ctx context.Context, flags *flag.FlagSet, printer *cli.Printer) error {
		if err := cli.ExactArgs(flags.Args(), 1); err != nil {
			return err
		}
		spec := requestSpec{
			Method: cli.MustGet(flags.GetString(flagMethod)),
			URL:    flags.Arg(0),
		}
		for _, header := range cli.MustGet(flags.GetStringArray(flagHeader)) {
			name, value, found := strings.Cut(header, ":")
			if !found {
				return cli.NewUsageError("header '%s' should be formatted as 'Name: value'", header)
			}
			spec.Headers = append(spec.Headers, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
		}
		if data := cli.MustGet(flags.GetString(flagData)); len(data) > 0 {
			spec.Body = data
		}
		if creds := cli.MustGet(flags.GetString(flagUser)); len(creds) > 0 {
			user, pass, hasPass := strings.Cut(creds, ":")
			spec.User = httpx.Some(user)
			if hasPass {
				spec.Pass = httpx.Some(pass)
			}
		}
		if cli.MustGet(flags.GetBool(flagSync)) {
			spec.Async = httpx.Some(false)
		}

		s, err := newSession(flags, printer, stdout, transport)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		req, err := s.do(ctx, spec)
		if err != nil {
			return err
		}
		if _, err := stdout.Write(req.ResponseBytes()); err != nil {
			return err
		}
		s.summarize()
		return req.Err()
	})
}
