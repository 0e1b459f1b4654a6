package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gamegate",
		Short: "Connection admission gate for multiplayer game rooms",
		Long: `gamegate accepts player connections over TCP (binary frames) and WebSocket (JSON frames),
authenticates them, and hands each admitted connection over to its game room session.
A UDP port can be enabled as a secondary transport for admitted sessions.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newProbeCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
