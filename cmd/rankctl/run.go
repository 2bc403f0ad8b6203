package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/onnwee/lensrank/internal/config"
	"github.com/onnwee/lensrank/internal/rankings"
	"github.com/onnwee/lensrank/internal/strategy"
	"github.com/onnwee/lensrank/internal/validate"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
)

// defaultTimeout applies when REQUEST_TIMEOUT is unset; interactive use
// should not hang on a stalled upstream.
const defaultTimeout = 30 * time.Second

var errNotFound = errors.New("handle does not exist")

const usage = `rankctl queries the Lens rankings API.

Usage: rankctl [global options] <command> [options]

Commands:
  strategies                          list ranking strategies
  rankings -strategy ID [-page N]     one page of global rankings
  count    -strategy ID               number of ranked profiles
  rank     -strategy ID -handle H     rank of a handle
  suggest  -handle H [-page N]        personalised rankings for a handle

Global options:
`

// run executes one rankctl invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, errs := config.Load("")
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(stderr, "config:", err)
		}
		return exitUsage
	}
	rc := cfg.RankingsConfig()
	if rc.Timeout == 0 {
		rc.Timeout = defaultTimeout
	}

	global := flag.NewFlagSet("rankctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&rc.BaseURL, "base-url", rc.BaseURL, "rankings API base URL")
	global.DurationVar(&rc.Timeout, "timeout", rc.Timeout, "request timeout (0 for none)")
	global.BoolVar(&rc.StrictDecode, "strict", rc.StrictDecode, "fail on responses missing required fields")
	verbose := global.Bool("v", false, "log failed requests to stderr")
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	level := slog.LevelError + 1
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	client, err := rankings.NewClient(rc, logger)
	if err != nil {
		fmt.Fprintln(stderr, "rankctl:", err)
		return exitUsage
	}

	out, err := dispatch(ctx, client, global.Arg(0), global.Args()[1:], stderr)
	switch {
	case errors.Is(err, flag.ErrHelp), errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errNotFound):
		fmt.Fprintln(stderr, "rankctl:", err)
		return exitNotFound
	case err != nil:
		fmt.Fprintln(stderr, "rankctl:", err)
		return exitFailure
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(stderr, "rankctl:", err)
		return exitFailure
	}
	return exitOK
}

var errUsage = errors.New("usage error")

func dispatch(ctx context.Context, client *rankings.Client, cmd string, args []string, stderr io.Writer) (any, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	strategyID := fs.String("strategy", strategy.Default().ID, "strategy id")
	handle := fs.String("handle", "", "profile handle")
	page := fs.Int("page", 1, "page number")

	switch cmd {
	case "strategies":
		return strategy.All(), nil

	case "rankings":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return client.GlobalRankings(ctx, *strategyID, *page)

	case "count":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		count, err := client.RankingsCount(ctx, *strategyID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"strategy_id": *strategyID, "count": count}, nil

	case "rank":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		h, err := requireHandle(*handle, stderr)
		if err != nil {
			return nil, err
		}
		rank, found, err := client.GlobalRankByHandle(ctx, *strategyID, h)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", errNotFound, h)
		}
		return map[string]any{"handle": h, "strategy_id": *strategyID, "rank": rank}, nil

	case "suggest":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		h, err := requireHandle(*handle, stderr)
		if err != nil {
			return nil, err
		}
		return client.PersonalisedRankings(ctx, h, *page)

	default:
		fmt.Fprintf(stderr, "rankctl: unknown command %q\n", cmd)
		return nil, errUsage
	}
}

func requireHandle(raw string, stderr io.Writer) (string, error) {
	h, err := validate.Handle(raw)
	if err != nil {
		fmt.Fprintln(stderr, "rankctl: -handle:", err)
		return "", errUsage
	}
	return h, nil
}
