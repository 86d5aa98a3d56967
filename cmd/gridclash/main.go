package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗┬─┐┬┌┬┐╔═╗┬  ┌─┐┌─┐┬ ┬
  ║ ╦├┬┘│ ││║  │  ├─┤└─┐├─┤
  ╚═╝┴└─┴─┴┘╚═╝┴─┘┴ ┴└─┘┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridclash",
		Short: "Real-time multiplayer grid claiming over UDP",
		Long: `GridClash is a real-time multiplayer game node.

Up to four players race to claim cells of a shared 20x20 grid over a
custom UDP protocol with selective reliability: cell claims are
retransmitted until acknowledged, state snapshots are fire-and-forget
at 20 Hz.

Run a server, join with the terminal client, add bots, or collect
latency measurements with the headless client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		playCmd(),
		botCmd(),
		measureCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Print(banner)
	fmt.Println()
}
