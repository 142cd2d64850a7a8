package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sunstory/openusage/internal/metrics"
)

// CCUsageOptions mirrors host.ccusage.query's script-facing argument object.
type CCUsageOptions struct {
	Provider   string
	Since      string
	Until      string
	HomePath   string
	ClaudePath string
}

const ccusageTimeout = 15 * time.Second

// ccusageRunner is one node-package runner tried in order, with the
// standard non-interactive flags for invoking the `ccusage` package.
type ccusageRunner struct {
	name string
	args func(opts CCUsageOptions) []string
}

func ccusagePackageArgs(opts CCUsageOptions) []string {
	args := []string{"ccusage@latest", "daily", "--json"}
	if opts.Since != "" {
		args = append(args, "--since", opts.Since)
	}
	if opts.Until != "" {
		args = append(args, "--until", opts.Until)
	}
	return args
}

var ccusageRunners = []ccusageRunner{
	{name: "bunx", args: func(opts CCUsageOptions) []string {
		return append([]string{"--yes"}, ccusagePackageArgs(opts)...)
	}},
	{name: "pnpm", args: func(opts CCUsageOptions) []string {
		return append([]string{"dlx"}, ccusagePackageArgs(opts)...)
	}},
	{name: "yarn", args: func(opts CCUsageOptions) []string {
		return append([]string{"dlx"}, ccusagePackageArgs(opts)...)
	}},
	{name: "npm", args: func(opts CCUsageOptions) []string {
		pkgArgs := ccusagePackageArgs(opts)
		return append([]string{"exec", "--yes", "--package=" + pkgArgs[0]}, pkgArgs[1:]...)
	}},
	{name: "npx", args: func(opts CCUsageOptions) []string {
		return append([]string{"--yes"}, ccusagePackageArgs(opts)...)
	}},
}

// CCUsageQuery implements host.ccusage.query: runs node-package runners in
// order until one exits 0 with `daily`-shaped JSON on stdout.
func (b *Bridge) CCUsageQuery(opts CCUsageOptions) (string, error) {
	metrics.BridgeCall(b.pluginID, "ccusage.query")

	env := homeOverrideEnv(opts)
	var lastErr error
	for _, runner := range ccusageRunners {
		stdout, err := runCCUsageRunner(runner, opts, env)
		if err != nil {
			lastErr = err
			b.Log("info", fmt.Sprintf("ccusage: %s failed: %v", runner.name, err))
			continue
		}
		normalized, ok := normalizeCCUsage(stdout)
		if !ok {
			lastErr = fmt.Errorf("%s produced no daily-shaped output", runner.name)
			b.Log("info", fmt.Sprintf("ccusage: %s output not daily-shaped, trying next runner", runner.name))
			continue
		}
		b.Log("info", fmt.Sprintf("ccusage: %s succeeded", runner.name))
		return normalized, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no ccusage runner available")
	}
	return "", fmt.Errorf("ccusage.query: all runners failed: %w", lastErr)
}

func homeOverrideEnv(opts CCUsageOptions) []string {
	var env []string
	if opts.ClaudePath != "" {
		env = append(env, "CLAUDE_CONFIG_DIR="+opts.ClaudePath)
	}
	if opts.HomePath != "" {
		env = append(env, "CODEX_HOME="+opts.HomePath)
	}
	return env
}

// runCCUsageRunner spawns one runner and polls for completion every 100ms
// up to the wall-clock timeout, per spec.md §9's bounded external-call rule.
func runCCUsageRunner(runner ccusageRunner, opts CCUsageOptions, extraEnv []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ccusageTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, runner.name, runner.args(opts)...)
	if len(extraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), extraEnv...)
	}

	var stdout strings.Builder
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%s: spawn failed: %w", runner.name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				return "", fmt.Errorf("%s: %w", runner.name, err)
			}
			return stdout.String(), nil
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			return "", fmt.Errorf("%s: timed out after %s", runner.name, ccusageTimeout)
		case <-ticker.C:
		}
	}
}

// normalizeCCUsage implements the ccusage normalization property: any JSON
// object with a daily array passes through, a bare array becomes {daily:
// array}, and anything else (invalid JSON, missing daily) signals the
// caller to try the next runner.
func normalizeCCUsage(stdout string) (string, bool) {
	start := strings.IndexAny(stdout, "{[")
	if start < 0 {
		return "", false
	}
	candidate := stdout[start:]

	var asArray []json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &asArray); err == nil {
		out, _ := json.Marshal(map[string]any{"daily": asArray})
		return string(out), true
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &asObject); err == nil {
		if _, ok := asObject["daily"]; ok {
			var dailyArray []json.RawMessage
			if err := json.Unmarshal(asObject["daily"], &dailyArray); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}
