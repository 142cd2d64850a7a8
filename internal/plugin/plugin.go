// Package plugin implements the OpenUsage plugin engine: manifest loading,
// the sandboxed script host bridge, the runtime driver, and the probe
// coordinator. Public wire types live in pkg/plugin; this package re-exports
// them so internal code has one name to import while external plugin
// authors document against the public package.
package plugin

import (
	pkgplugin "github.com/sunstory/openusage/pkg/plugin"
)

type LineType = pkgplugin.LineType

const (
	LineProgress = pkgplugin.LineProgress
	LineText     = pkgplugin.LineText
	LineBadge    = pkgplugin.LineBadge
)

type ManifestLine = pkgplugin.ManifestLine
type Manifest = pkgplugin.Manifest
type LoadedPlugin = pkgplugin.LoadedPlugin
type ProgressFormat = pkgplugin.ProgressFormat
type MetricLine = pkgplugin.MetricLine
type Output = pkgplugin.Output
