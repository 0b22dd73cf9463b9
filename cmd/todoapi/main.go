// Command todoapi serves an in-memory todo collection over HTTP.
//
// Configuration comes from defaults, an optional TOML file (-config or
// TODOAPI_CONFIG), environment variables (PORT, TODOAPI_*) and flags, in that
// order of precedence. SIGINT and SIGTERM trigger a graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"todoapi/internal/config"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Getenv, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "todoapi: %v\n", err)
		exitFunc(1)
	}
}

// run loads configuration and serves until ctx is cancelled.
func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) error {
	fs := flag.NewFlagSet("todoapi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.Load(fs, args, getenv)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.close()
	return a.serve(ctx)
}
