package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sunstory/openusage/internal/pathresolve"
)

var (
	flagPluginsDir string
	flagAppVersion string
)

var rootCmd = &cobra.Command{
	Use:   "openusage-probe",
	Short: "Run and inspect OpenUsage provider plugins",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Matches the app's own startup sequence: disable the system proxy
		// exactly once, before any probe work begins, so a misconfigured
		// corporate proxy doesn't intercept every plugin's http.request call.
		return os.Setenv("OPENUSAGE_DISABLE_SYSTEM_PROXY", "1")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPluginsDir, "plugins-dir", "", "override the plugins root (defaults to OPENUSAGE_PLUGINS_DIR, a dev plugins/ directory, or the app-data plugins directory)")
	rootCmd.PersistentFlags().StringVar(&flagAppVersion, "app-version", "dev", "app version string exposed to plugin scripts as app.version")

	_ = viper.BindPFlag("pluginsDir", rootCmd.PersistentFlags().Lookup("plugins-dir"))
	viper.SetEnvPrefix("openusage")
	viper.AutomaticEnv()

	rootCmd.AddCommand(listCmd, probeCmd, versionCmd)
}

// resolvePluginsDir honors --plugins-dir first (viper's AutomaticEnv with the
// "openusage" prefix also maps OPENUSAGE_PLUGINSDIR onto the same key), then
// falls through to pathresolve.PluginsDir's own OPENUSAGE_PLUGINS_DIR /
// dev-dir / app-data precedence; pathresolve.PluginsDir reads
// OPENUSAGE_PLUGINS_DIR directly, viper does not.
func resolvePluginsDir() (string, error) {
	if dir := viper.GetString("pluginsDir"); dir != "" {
		return dir, nil
	}
	appDataDir, err := pathresolve.AppDataDir()
	if err != nil {
		return "", err
	}
	return pathresolve.PluginsDir(appDataDir, "")
}
