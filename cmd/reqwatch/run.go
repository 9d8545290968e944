package main

import (
	"context"
	"fmt"
	"github.com/saylorsolutions/reqwatch/cli"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"io"
	"net/http"
	"sync/atomic"
)

func addRunCommand(set *cli.CommandSet, stdout io.Writer, transport http.RoundTripper) {
	cmd := set.AddCommand("run", "Performs the requests in a YAML plan concurrently, reporting their lifecycle events")
	cmd.Usage("[FLAGS] PLAN.yaml")
	registerSessionFlags(cmd.Flags())

	cmd.Does(func(ctx context.Context, flags *flag.FlagSet, printer *cli.Printer) error {
		if err := cli.ExactArgs(flags.Args(), 1); err != nil {
			return err
		}
		plan, err := loadPlan(flags.Arg(0))
		if err != nil {
			return err
		}
		s, err := newSession(flags, printer, stdout, transport)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()

		var failed atomic.Int32
		grp, ctx := errgroup.WithContext(ctx)
		grp.SetLimit(s.cfg.Concurrency)
		for _, planned := range plan.Requests {
			if ctx.Err() != nil {
				break
			}
			grp.Go(func() error {
				req, err := s.do(ctx, planned.spec())
				if err != nil {
					if ctx.Err() != nil {
						return err
					}
					s.log.Error("Request could not be sent", "request", planned.Name, "error", err)
					failed.Add(1)
					return nil
				}
				if err := req.Err(); err != nil {
					s.log.Warn("Request failed", "request", planned.Name, "error", err)
					failed.Add(1)
				}
				return nil
			})
		}
		err = grp.Wait()
		s.summarize()
		if err != nil {
			return err
		}
		if n := failed.Load(); n > 0 {
			return fmt.Errorf("%d of %d requests failed", n, len(plan.Requests))
		}
		return nil
	})
}
