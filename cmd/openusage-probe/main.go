// Command openusage-probe is a CLI harness over the OpenUsage plugin engine:
// list discovered plugins, or run a single provider's probe and print its
// result. It exists so the engine (manifest loading, the host bridge, the
// runtime driver, and the probe coordinator) can be exercised and debugged
// without the tray application around it — and is the home for the
// cobra/viper dependencies the engine itself never needs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
