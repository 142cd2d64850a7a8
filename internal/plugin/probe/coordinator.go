// Package probe implements the OpenUsage probe coordinator (C7): the single
// public entry point that drives one plugin probe end to end through the
// runtime driver (C5) and the host bridge (C4), and unconditionally returns
// a well-formed Output — converting any failure into the canonical error
// badge rather than letting it reach the caller.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunstory/openusage/internal/metrics"
	"github.com/sunstory/openusage/internal/plugin/bridge"
	"github.com/sunstory/openusage/internal/plugin/runtime"
	pkgplugin "github.com/sunstory/openusage/pkg/plugin"
)

// DefaultTimeout bounds the wall-clock budget of a single probe. The engine
// cannot forcibly stop a script mid-execution — goja offers no safe
// preemption from another goroutine here — so a timed-out probe's goroutine
// is abandoned rather than killed; the timeout only bounds how long the
// caller waits for an answer.
const DefaultTimeout = 15 * time.Second

// Coordinator runs probes against loaded plugins.
type Coordinator struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithLogger overrides the structured logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithTimeout overrides the per-probe wall-clock budget (defaults to
// DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// New constructs a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{logger: slog.Default(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunProbe drives one probe of plug and returns an Output unconditionally.
// It never propagates a panic or an error to the caller: every failure path
// — bridge construction, script evaluation, a thrown exception, a timeout,
// or a recovered panic — becomes a single Badge{label:"error"} line inside
// an otherwise well-formed Output.
func (c *Coordinator) RunProbe(plug pkgplugin.LoadedPlugin, appDataDir, appVersion string) pkgplugin.Output {
	start := time.Now()
	result, err := c.runWithTimeout(plug, appDataDir, appVersion)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("probe failed", "plugin", plug.Manifest.ID, "error", err)
		metrics.ProbeOutcome(plug.Manifest.ID, "error_badge", duration)
		return errorOutput(plug, err)
	}

	metrics.ProbeOutcome(plug.Manifest.ID, "ok", duration)
	return pkgplugin.Output{
		ProviderID:  plug.Manifest.ID,
		DisplayName: plug.Manifest.Name,
		Plan:        result.PlanLabel,
		IconURL:     plug.IconDataURL,
		Lines:       result.Lines,
	}
}

func (c *Coordinator) runWithTimeout(plug pkgplugin.LoadedPlugin, appDataDir, appVersion string) (result runtime.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()

	br, err := bridge.New(plug.Manifest.ID, appVersion, appDataDir,
		bridge.WithLogger(c.logger), bridge.WithLogBuffer(bridge.GlobalLogBuffer()))
	if err != nil {
		return runtime.Result{}, fmt.Errorf("construct host bridge: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	type outcome struct {
		result runtime.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		res, runErr := runtime.New().Run(plug, br)
		done <- outcome{result: res, err: runErr}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return runtime.Result{}, fmt.Errorf("probe timed out after %s", c.timeout)
	}
}

func errorOutput(plug pkgplugin.LoadedPlugin, err error) pkgplugin.Output {
	return pkgplugin.Output{
		ProviderID:  plug.Manifest.ID,
		DisplayName: plug.Manifest.Name,
		IconURL:     plug.IconDataURL,
		Lines: []pkgplugin.MetricLine{
			{Type: pkgplugin.LineBadge, Label: "error", Text: err.Error()},
		},
	}
}
