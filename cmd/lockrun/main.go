// Command lockrun runs a command while holding a Redis lock, so that at most
// one copy runs across every host sharing the Redis server:
//
//	lockrun -key nightly-report -ttl 10m -wait -timeout 30s -- ./report.sh
//
// Connection settings come from REDIS_* variables (see pool.Settings) and may
// be overridden with -addr. Exit status is the command's own, or 75 when the
// lock was not obtained.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirkobrombin/go-toolkit/v1/backoff"
	"github.com/mirkobrombin/go-toolkit/v1/lock"
	"github.com/mirkobrombin/go-toolkit/v1/pool"
	"github.com/mirkobrombin/go-toolkit/v1/settings"
)

const exitNotAcquired = 75

var (
	addr    = flag.String("addr", "", "Redis URI, overrides REDIS_URI")
	key     = flag.String("key", "", "Lock key (required)")
	ttl     = flag.Duration("ttl", time.Minute, "Lease time to live")
	wait    = flag.Bool("wait", false, "Wait for the lock instead of giving up")
	timeout = flag.Duration("timeout", 30*time.Second, "Maximum wait with -wait")
	spin    = flag.Int("spin", 0, "Immediate attempts before giving up or waiting")
	verbose = flag.Bool("v", false, "Debug logging")
)

func main() {
	flag.Parse()
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *key == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: lockrun -key NAME [flags] -- command [args...]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	os.Exit(run(flag.Args()))
}

func run(argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ps pool.Settings
	if err := settings.Load(&ps); err != nil {
		slog.Error("lockrun: invalid redis settings", "error", err)
		return 2
	}
	if *addr != "" {
		ps.URI = *addr
	}
	client, err := pool.NewClient(ps)
	if err != nil {
		slog.Error("lockrun: redis client", "error", err)
		return 2
	}
	defer client.Close()

	locker := lock.New(lock.NewRedisStore(client)).Raise()
	if *spin > 0 {
		locker = locker.Spin(*spin)
	}
	if *wait {
		locker = locker.Wait(backoff.Capped(backoff.Exponential(100*time.Millisecond, 2), 5*time.Second), *timeout)
	}

	exitCode := 0
	_, err = locker.Do(ctx, *key, *ttl, func(ctx context.Context) error {
		slog.Debug("lockrun: lock acquired", "key", *key, "ttl", *ttl)
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		err := cmd.Run()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			return nil
		}
		return err
	})

	var lockErr *lock.Error
	switch {
	case errors.As(err, &lockErr) && !errors.Is(err, lock.ErrStore):
		slog.Warn("lockrun: lock not acquired", "key", *key, "error", err, "retryable", lockErr.CanRetry)
		return exitNotAcquired
	case err != nil:
		slog.Error("lockrun: run failed", "key", *key, "error", err)
		return 1
	}
	return exitCode
}
