// Command cubism loads a Live2D model headlessly, drives its animation
// loop and serves a control API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cubism",
		Short: "Live2D Cubism motion and expression host",
		Long: `cubism loads Cubism 2 (model.json) and Cubism 4 (model3.json) models,
runs their motion, expression and lip-sync pipeline at a fixed frame
rate and exposes it over HTTP and websocket.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
