// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmcraft wraps the charmcraft CLI for the store
// operations Launchpad has no API for: releasing revisions into
// channels and closing channels.
package charmcraft

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/kballard/go-shellquote"
)

// ErrGatewayTimeout indicates charmcraft failed because the store
// returned a 504. These are transient and worth retrying.
const ErrGatewayTimeout = errors.ConstError("charmhub gateway timeout")

// gatewayTimeoutMessage is the exact text charmcraft prints when the
// store answers with a 504.
const gatewayTimeoutMessage = "Issue encountered while processing your request: [504] Gateway Time-out."

// Logger is an in place interface to represent a logger for
// consuming.
type Logger interface {
	Errorf(string, ...interface{})
	Debugf(string, ...interface{})
}

// Resource names a charm resource revision to attach to a release.
type Resource struct {
	Name     string
	Revision int
}

func (r Resource) String() string {
	return fmt.Sprintf("%s:%d", r.Name, r.Revision)
}

// RunnerConfig holds configuration for creating a Runner.
type RunnerConfig struct {
	// DryRun prints the commands instead of executing them.
	DryRun bool

	// Retries is how many times a gateway timeout is retried before
	// giving up. Zero means a single attempt.
	Retries int

	// Output receives dry-run command lines. Defaults to stdout.
	Output io.Writer

	Logger Logger
	Clock  clock.Clock
}

// Runner executes charmcraft commands.
type Runner struct {
	config RunnerConfig

	// run is swapped out in tests.
	run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewRunner creates a Runner from the config.
func NewRunner(config RunnerConfig) (*Runner, error) {
	if config.Logger == nil {
		return nil, errors.NotValidf("nil logger")
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	r := &Runner{config: config}
	r.run = r.execute
	return r, nil
}

// Release releases the charm revision into the channel, attaching the
// given resource revisions.
func (r *Runner) Release(ctx context.Context, charm string, revision int, channel string, resources []Resource) error {
	args := []string{
		"charmcraft", "release", charm,
		fmt.Sprintf("--revision=%d", revision),
		fmt.Sprintf("--channel=%s", channel),
	}
	for _, resource := range resources {
		args = append(args, fmt.Sprintf("--resource=%s", resource))
	}
	return errors.Trace(r.invoke(ctx, args))
}

// Close closes the charm's channel, so that clients fall through to
// the next open risk in the track.
func (r *Runner) Close(ctx context.Context, charm, channel string) error {
	return errors.Trace(r.invoke(ctx, []string{"charmcraft", "close", charm, channel}))
}

func (r *Runner) invoke(ctx context.Context, args []string) error {
	if r.config.DryRun {
		fmt.Fprintf(r.config.Output, "%s  # dry-run mode\n", shellquote.Join(args...))
		return nil
	}

	r.config.Logger.Debugf("running: %s", strings.Join(args, " "))
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			output, err := r.run(ctx, args...)
			if err == nil {
				return nil
			}
			r.config.Logger.Errorf("%s", output)
			if strings.Contains(string(output), gatewayTimeoutMessage) {
				return errors.Annotatef(ErrGatewayTimeout, "%s", args[1])
			}
			return errors.Annotatef(err, "charmcraft %s", args[1])
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, ErrGatewayTimeout)
		},
		Attempts: r.config.Retries + 1,
		Delay:    time.Second,
		Clock:    r.config.Clock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	return errors.Trace(err)
}

// execute runs the command with stderr folded into stdout, the way
// charmcraft reports store errors.
func (r *Runner) execute(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	return cmd.CombinedOutput()
}
