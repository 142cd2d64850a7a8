package plugin

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ManifestError reports why a single plugin directory was rejected. Loading
// always continues past a ManifestError — see LoadDir.
type ManifestError struct {
	PluginDir string
	Reason    string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("plugin %s: %s", e.PluginDir, e.Reason)
}

// LoadDir iterates plugins directory (non-recursive) and returns every
// plugin directory that parses, validates, and matches the current OS,
// sorted ascending by id. Malformed plugins are skipped individually and
// logged as warnings; the loader never fails wholesale (spec.md §4.3, §7
// error kind 2).
func LoadDir(logger *slog.Logger, pluginsDir string) []LoadedPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(pluginsDir); err == nil {
		pluginsDir = abs
	}

	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		logger.Warn("plugins directory not readable", "dir", pluginsDir, "error", err)
		return nil
	}

	var loaded []LoadedPlugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(pluginsDir, entry.Name())
		manifestPath := filepath.Join(dir, "plugin.json")
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		plug, err := loadSingle(logger, dir)
		if err != nil {
			logger.Warn("skipping plugin", "dir", dir, "error", err)
			continue
		}
		if plug == nil {
			// filtered by OS, not an error
			continue
		}
		loaded = append(loaded, *plug)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Manifest.ID < loaded[j].Manifest.ID
	})
	return loaded
}

// loadSingle parses and validates one plugin directory. A nil, nil return
// means the plugin was dropped because of an os filter, not an error.
func loadSingle(logger *slog.Logger, dir string) (*LoadedPlugin, error) {
	manifestPath := filepath.Join(dir, "plugin.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestError{PluginDir: dir, Reason: fmt.Sprintf("read manifest: %v", err)}
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ManifestError{PluginDir: dir, Reason: fmt.Sprintf("parse manifest: %v", err)}
	}

	for _, line := range m.Lines {
		if line.PrimaryOrder != nil && line.Type != LineProgress {
			logger.Warn("primaryOrder set on non-progress line; ignoring",
				"plugin", m.ID, "label", line.Label, "type", line.Type)
		}
	}

	if strings.TrimSpace(m.Entry) == "" {
		return nil, &ManifestError{PluginDir: dir, Reason: "entry field cannot be empty"}
	}
	if filepath.IsAbs(m.Entry) {
		return nil, &ManifestError{PluginDir: dir, Reason: "entry must be a relative path"}
	}

	canonicalDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, &ManifestError{PluginDir: dir, Reason: fmt.Sprintf("canonicalize plugin dir: %v", err)}
	}
	entryPath := filepath.Join(dir, m.Entry)
	canonicalEntry, err := filepath.EvalSymlinks(entryPath)
	if err != nil {
		return nil, &ManifestError{PluginDir: dir, Reason: fmt.Sprintf("canonicalize entry: %v", err)}
	}
	if !isWithin(canonicalDir, canonicalEntry) {
		return nil, &ManifestError{PluginDir: dir, Reason: "entry escapes plugin directory"}
	}
	info, err := os.Stat(canonicalEntry)
	if err != nil || info.IsDir() {
		return nil, &ManifestError{PluginDir: dir, Reason: "entry must be a regular file"}
	}

	entryScript, err := os.ReadFile(canonicalEntry)
	if err != nil {
		return nil, &ManifestError{PluginDir: dir, Reason: fmt.Sprintf("read entry: %v", err)}
	}

	iconBytes, err := os.ReadFile(filepath.Join(dir, m.Icon))
	if err != nil {
		return nil, &ManifestError{PluginDir: dir, Reason: fmt.Sprintf("read icon: %v", err)}
	}
	iconDataURL := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(iconBytes)

	if len(m.OS) > 0 && !osMatches(m.OS, runtime.GOOS) {
		return nil, nil
	}

	return &LoadedPlugin{
		Manifest:    m,
		PluginDir:   dir,
		EntryScript: string(entryScript),
		IconDataURL: iconDataURL,
	}, nil
}

// isWithin reports whether target is dir itself or a descendant of it.
func isWithin(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

func osMatches(declared []string, goos string) bool {
	current := map[string]string{"darwin": "macos", "windows": "windows", "linux": "linux"}[goos]
	for _, want := range declared {
		if strings.EqualFold(want, current) {
			return true
		}
	}
	return false
}
