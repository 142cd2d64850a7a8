// Package runtime implements the OpenUsage runtime driver (C5): a fresh,
// isolated goja context per probe, the installed host bridge and pure-script
// utility library, and validation of the producer's returned lines.
//
// Grounded on original_source's src-tauri/src/plugin_engine/host_api.rs
// (inject_host_api / inject_utils) for the capability surface and utility
// library shape; there is no runtime.rs in the retrieved source, so the
// driver's control flow is authored directly from the line-validation and
// never-panics requirements, in goja's idiomatic style.
package runtime

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/sunstory/openusage/internal/plugin/bridge"
	pkgplugin "github.com/sunstory/openusage/pkg/plugin"
)

//go:embed js/utils.js
var utilsScript string

// Driver evaluates one plugin's entry script per call. It holds no state
// between calls — every Run constructs and tears down its own goja.Runtime,
// matching the "no shared state between probes" rule.
type Driver struct{}

// New constructs a Driver.
func New() *Driver {
	return &Driver{}
}

// Result is a validated, normalized probe result: everything the producer
// returned that survived the checks in decodeResult.
type Result struct {
	PlanLabel string
	Lines     []pkgplugin.MetricLine
}

// Run evaluates plug's entry script in a fresh context, invokes its global
// probe() function with no arguments, and returns the validated result. Any
// failure — a script that fails to compile, a thrown exception, a missing
// producer, or a malformed return value — comes back as an error; Run never
// panics to its caller.
func (d *Driver) Run(plug pkgplugin.LoadedPlugin, br *bridge.Bridge) (Result, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := installHostContext(vm, br); err != nil {
		return Result{}, fmt.Errorf("install host context: %w", err)
	}
	if _, err := vm.RunString(utilsScript); err != nil {
		return Result{}, fmt.Errorf("install utility library: %w", err)
	}

	if _, err := vm.RunString(plug.EntryScript); err != nil {
		return Result{}, describeJSError(err)
	}

	probeFn, ok := goja.AssertFunction(vm.Get("probe"))
	if !ok {
		return Result{}, fmt.Errorf("entry script does not define a global probe() function")
	}

	returned, err := probeFn(goja.Undefined())
	if err != nil {
		return Result{}, describeJSError(err)
	}

	return decodeResult(vm, returned)
}

// decodeResult round-trips the producer's return value through the VM's own
// JSON.stringify, then decodes and validates it on the Go side. This avoids
// relying on goja's reflection-based object export for an open-ended shape,
// the same "serialize, cross the boundary, re-parse" idiom the bridge
// already uses for http.request / ls.discover / ccusage.query.
func decodeResult(vm *goja.Runtime, returned goja.Value) (Result, error) {
	if returned == nil || goja.IsUndefined(returned) || goja.IsNull(returned) {
		return Result{}, fmt.Errorf("probe() must return an object with a lines array")
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return Result{}, fmt.Errorf("JSON.stringify unavailable in script context")
	}
	encoded, err := stringify(goja.Undefined(), returned)
	if err != nil {
		return Result{}, fmt.Errorf("serialize probe() result: %w", describeJSError(err))
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(encoded.String()), &raw); err != nil {
		return Result{}, fmt.Errorf("probe() returned a malformed result: %w", err)
	}

	lines := make([]pkgplugin.MetricLine, 0, len(raw.Lines))
	for _, rl := range raw.Lines {
		if line, ok := validateLine(rl); ok {
			lines = append(lines, line)
		}
	}
	return Result{PlanLabel: raw.PlanLabel, Lines: lines}, nil
}
