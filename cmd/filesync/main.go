package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/studio1767/filesync/internal/config"
	"github.com/studio1767/filesync/internal/manifest"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// errSyncFailed means the run finished but left work for the next one.
var errSyncFailed = errors.New("sync finished with failures")

// setupError is a failure to prepare the run, before any file is touched.
type setupError struct {
	err error
}

func (e *setupError) Error() string {
	return e.err.Error()
}

func (e *setupError) Unwrap() error {
	return e.err
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if !errors.Is(err, errSyncFailed) {
		fmt.Fprintf(stderr, "Error: %s\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var cerr *config.ConfigError
	var serr *setupError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cerr), errors.As(err, &serr), errors.Is(err, manifest.ErrManifestLocked):
		return exitConfig
	}
	return exitFailed
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !color,
	}))
}
