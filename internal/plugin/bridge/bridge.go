// Package bridge implements the OpenUsage script host bridge (C4): the
// fixed capability surface (log, fs, env, http, keychain, vault, sqlite,
// ls discovery, ccusage) the runtime driver (C5) installs into every
// sandboxed probe context. Grounded on goatkit-goatflow's
// internal/plugin/hostapi_prod.go — functional-options construction, a
// *slog.Logger threaded through every call, context-derived tagging — and
// internal/plugin/grpc/host_api.go's dispatch-by-capability shape, adapted
// from a DB/cache/email surface to this engine's process/fs/credential one.
package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sunstory/openusage/internal/metrics"
	"github.com/sunstory/openusage/internal/pathresolve"
	"github.com/sunstory/openusage/internal/plugin/redact"
)

// CapabilityUnavailableError is returned when a capability has no
// implementation on the current platform (e.g. host.keychain on Windows).
type CapabilityUnavailableError struct {
	Capability string
	Platform   string
}

func (e *CapabilityUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available on %s", e.Capability, e.Platform)
}

// currentPlatform maps runtime.GOOS to the spec's macos/windows/linux
// vocabulary (used in manifest os filtering and capability-unavailable
// errors).
func currentPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// Bridge is the Go-side implementation backing __openusage_ctx. One Bridge
// is constructed per probe by the probe coordinator and handed to the runtime
// driver; it is never shared across
// probes, matching the "no shared state between probes" concurrency rule.
type Bridge struct {
	pluginID      string
	appVersion    string
	appDataDir    string
	pluginDataDir string
	correlationID string
	logger        *slog.Logger
	logBuf        *LogBuffer
	envCache      *envCache
	httpClient    httpDoer
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithLogger overrides the structured logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithLogBuffer attaches a ring buffer capturing recent plugin log lines.
func WithLogBuffer(buf *LogBuffer) Option {
	return func(b *Bridge) { b.logBuf = buf }
}

// WithEnvCache injects a process-wide env lookup cache (spec.md §5: one of
// the two process-wide mutable caches, safe for concurrent access).
func WithEnvCache(c *envCache) Option {
	return func(b *Bridge) { b.envCache = c }
}

// New constructs a Bridge for one probe of pluginID.
func New(pluginID, appVersion, appDataDir string, opts ...Option) (*Bridge, error) {
	pluginDataDir := filepath.Join(appDataDir, "plugins_data", pluginID)
	if err := os.MkdirAll(pluginDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plugin data dir: %w", err)
	}

	b := &Bridge{
		pluginID:      pluginID,
		appVersion:    appVersion,
		appDataDir:    appDataDir,
		pluginDataDir: pluginDataDir,
		correlationID: uuid.NewString(),
		logger:        slog.Default(),
		envCache:      globalEnvCache,
		httpClient:    defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// AppInfo is the `app` sub-object exposed to scripts.
type AppInfo struct {
	Version       string `json:"version"`
	Platform      string `json:"platform"`
	AppDataDir    string `json:"appDataDir"`
	PluginDataDir string `json:"pluginDataDir"`
}

// NowISO returns the RFC 3339 UTC timestamp captured at injection time.
func (b *Bridge) NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// App returns the app info exposed at __openusage_ctx.app.
func (b *Bridge) App() AppInfo {
	return AppInfo{
		Version:       b.appVersion,
		Platform:      currentPlatform(),
		AppDataDir:    b.appDataDir,
		PluginDataDir: b.pluginDataDir,
	}
}

// PluginDataDir returns the per-plugin scratch directory.
func (b *Bridge) PluginDataDir() string { return b.pluginDataDir }

// CorrelationID is attached to every log record this bridge instance emits,
// letting a single probe's activity be traced end to end. Metrics are
// labeled by plugin and capability only and do not carry it.
func (b *Bridge) CorrelationID() string { return b.correlationID }

// Log implements host.log.{info,warn,error}: the message passes through the
// light Redactor before it reaches the structured logger or the ring
// buffer (data model invariant 5).
func (b *Bridge) Log(level, msg string) {
	clean := redact.LogLine(msg)
	attrs := []any{"plugin", b.pluginID, "correlation_id", b.correlationID}
	switch level {
	case "warn":
		b.logger.Warn(clean, attrs...)
	case "error":
		b.logger.Error(clean, attrs...)
	default:
		b.logger.Info(clean, attrs...)
	}
	metrics.BridgeCall(b.pluginID, "log."+level)
	if b.logBuf != nil {
		b.logBuf.Log(b.pluginID, level, clean)
	}
}

// FSExists implements host.fs.exists.
func (b *Bridge) FSExists(path string) bool {
	metrics.BridgeCall(b.pluginID, "fs.exists")
	b.Log("info", fmt.Sprintf("fs.exists %s", path))
	_, err := os.Stat(pathresolve.Expand(path))
	return err == nil
}

// FSReadText implements host.fs.readText.
func (b *Bridge) FSReadText(path string) (string, error) {
	metrics.BridgeCall(b.pluginID, "fs.readText")
	b.Log("info", fmt.Sprintf("fs.readText %s", path))
	data, err := os.ReadFile(pathresolve.Expand(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// FSWriteText implements host.fs.writeText.
func (b *Bridge) FSWriteText(path, content string) error {
	metrics.BridgeCall(b.pluginID, "fs.writeText")
	b.Log("info", fmt.Sprintf("fs.writeText %s", path))
	expanded := pathresolve.Expand(path)
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	if err := os.WriteFile(expanded, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
