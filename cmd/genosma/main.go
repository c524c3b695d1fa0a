package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/doeshing/genosma/internal/infrastructure/cli"
)

// exitStartFailure is used when the pipeline cannot be assembled at all.
const exitStartFailure = 127

func main() {
	// A missing .env is normal; keys usually come from the environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{Verbose: isVerbose(), ConfigPath: os.Getenv("GENOSMA_CONFIG")}
	cli.ParseGlobalFlags(os.Args[1:], &opts)

	root, closeFn, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitStartFailure)
	}

	err = root.ExecuteContext(ctx)
	if cerr := closeFn(); cerr != nil && opts.Verbose {
		fmt.Fprintln(os.Stderr, "warning:", cerr)
	}
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		stop()
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	stop()
	os.Exit(1)
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("GENOSMA_DEBUG"), "1") || strings.EqualFold(os.Getenv("GENOSMA_DEBUG"), "true")
}
