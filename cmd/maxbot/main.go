package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "maxbot",
		Short: "Persistent client for the MAX messenger",
		Long: `Maxbot keeps a long-lived WebSocket session with MAX
(web.max.ru). It signs in with a stored token or a phone number
plus SMS code, reconnects after drops and prints incoming
messages as structured log events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
