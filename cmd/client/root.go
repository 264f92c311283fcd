package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kidhurshan/Meetly-Video-Conferencing-App/internal/logging"
)

var (
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
)

var rootCmd = &cobra.Command{
	Use:   "meetly",
	Short: "Meetly - peer-to-peer video meetings from the terminal",
	Long: `Meetly connects participants in a named room over direct peer-to-peer
audio/video/data links. The relay server only exchanges connection
metadata; media never touches it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "signaling server websocket URL")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	rootCmd.PersistentFlags().StringVar(&flagTURN, "turn", "", "TURN server URL")
	rootCmd.PersistentFlags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	rootCmd.PersistentFlags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")

	rootCmd.AddCommand(joinCmd)
}

// Execute runs the CLI.
func Execute() {
	// The TUI owns the terminal; keep logs quiet unless asked.
	logging.Init(slog.LevelError)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
