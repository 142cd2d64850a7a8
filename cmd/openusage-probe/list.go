package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sunstory/openusage/internal/plugin"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolvePluginsDir()
		if err != nil {
			return err
		}

		loaded := plugin.LoadDir(slog.Default(), dir)
		if len(loaded) == 0 {
			fmt.Println("no plugins found in", dir)
			return nil
		}
		for _, p := range loaded {
			fmt.Printf("%-16s %-20s v%-10s %s\n", p.Manifest.ID, p.Manifest.Name, p.Manifest.Version, p.PluginDir)
		}
		return nil
	},
}
