// Package pathresolve implements the OpenUsage path resolver (C2): tilde
// expansion, the per-user application data directory, and plugins-root
// discovery. Grounded on original_source's
// src-tauri/src/plugin_engine/mod.rs (find_dev_plugins_dir, resolve_bundled_dir).
package pathresolve

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BundleID is the fixed application identifier used to namespace the
// per-user data directory across platforms.
const BundleID = "com.sunstory.openusage"

// Expand substitutes a leading "~" or "~/" with the user's home directory.
// Any other path is returned unchanged.
func Expand(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// AppDataDir returns the platform-local per-user application data directory,
// creating it if missing.
func AppDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, BundleID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create app data dir %s: %w", dir, err)
	}
	return dir, nil
}

// PluginsDir resolves the plugins root in priority order: the
// OPENUSAGE_PLUGINS_DIR override (if it exists), a dev plugins directory next
// to the current working directory or its parent (useful when iterating on
// plugins locally), and finally the per-user app-data plugins directory —
// overlaid once from bundledDir if it is empty.
func PluginsDir(appDataDir, bundledDir string) (string, error) {
	if override := os.Getenv("OPENUSAGE_PLUGINS_DIR"); override != "" {
		if dirExists(override) {
			return override, nil
		}
	}

	cwd, err := os.Getwd()
	if err == nil {
		for _, candidate := range []string{
			filepath.Join(cwd, "plugins"),
			filepath.Join(cwd, "..", "plugins"),
		} {
			if nonEmptyDir(candidate) {
				return candidate, nil
			}
		}
	}

	installed := filepath.Join(appDataDir, "plugins")
	if err := os.MkdirAll(installed, 0o755); err != nil {
		return "", fmt.Errorf("create plugins dir %s: %w", installed, err)
	}
	if bundledDir != "" && !nonEmptyDir(installed) {
		if err := overlayDir(bundledDir, installed); err != nil {
			return "", fmt.Errorf("overlay bundled plugins: %w", err)
		}
	}
	return installed, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func nonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// overlayDir copies bundled plugin content into dst, used once at startup
// when no dev or previously-installed plugins directory has content.
func overlayDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				return err
			}
			if err := overlayDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
