package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sunstory/openusage/internal/pathresolve"
	"github.com/sunstory/openusage/internal/plugin"
	"github.com/sunstory/openusage/internal/plugin/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe <plugin-id>",
	Short: "Run one plugin's probe and print its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pluginID := args[0]

		dir, err := resolvePluginsDir()
		if err != nil {
			return err
		}
		loaded := plugin.LoadDir(slog.Default(), dir)

		var target *plugin.LoadedPlugin
		for i := range loaded {
			if loaded[i].Manifest.ID == pluginID {
				target = &loaded[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("plugin %q not found in %s", pluginID, dir)
		}

		appDataDir, err := pathresolve.AppDataDir()
		if err != nil {
			return err
		}

		out := probe.New(probe.WithLogger(slog.Default())).RunProbe(*target, appDataDir, flagAppVersion)
		printOutput(*target, out)
		return nil
	},
}

// printOutput renders out the way the tray's own table would: every line
// plug's manifest declares gets a row, falling back to "n/a" when the probe
// didn't return a matching label, followed by any undeclared lines the
// script returned anyway.
func printOutput(plug plugin.LoadedPlugin, out plugin.Output) {
	fmt.Print(out.DisplayName)
	if out.Plan != "" {
		fmt.Printf(" (%s)", out.Plan)
	}
	fmt.Println()

	if out.Failed() {
		for _, line := range out.Lines {
			if line.IsErrorBadge() {
				fmt.Printf("  error: %s\n", line.Text)
			}
		}
		return
	}

	byLabel := make(map[string]plugin.MetricLine, len(out.Lines))
	for _, line := range out.Lines {
		byLabel[line.Label] = line
	}

	declared := make(map[string]bool, len(plug.Manifest.Lines))
	for _, decl := range plug.Manifest.Lines {
		declared[decl.Label] = true
		if line, ok := byLabel[decl.Label]; ok {
			printLine(line)
		} else {
			fmt.Printf("  %s: n/a\n", decl.Label)
		}
	}
	for _, line := range out.Lines {
		if !declared[line.Label] {
			printLine(line)
		}
	}
}

func printLine(line plugin.MetricLine) {
	switch line.Type {
	case plugin.LineProgress:
		fmt.Printf("  %s: %s\n", line.Label, formatProgress(line))
	case plugin.LineText:
		fmt.Printf("  %s: %s\n", line.Label, line.Value)
	case plugin.LineBadge:
		fmt.Printf("  %s: %s\n", line.Label, line.Text)
	}
}

func formatProgress(line plugin.MetricLine) string {
	switch line.Format.Kind {
	case "dollars":
		return fmt.Sprintf("$%.2f / $%.2f", line.Used, line.Limit)
	case "count":
		if line.Format.Unit != "" {
			return fmt.Sprintf("%.0f / %.0f %s", line.Used, line.Limit, line.Format.Unit)
		}
		return fmt.Sprintf("%.0f / %.0f", line.Used, line.Limit)
	default:
		return strconv.FormatFloat(line.Used, 'f', -1, 64) + "%"
	}
}
