package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/ui"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/version"
)

var (
	flagServer string
	flagRoom   string
	flagUser   string
	flagRole   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codeshot",
	Short: "Terminal companion for CodeShot interview rooms",
	Long: `codeshot talks to a CodeShot signaling server from the terminal. It can chat in an
interview room, list who is present, check server health and run a WebRTC
data channel call through the relay to measure latency between participants.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and runs it until
// completion or SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "Signaling server host[:port] or URL (overrides CODESHOT_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&flagRoom, "room", "r", "", "Interview room id")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Your user id (defaults to $USER)")
	rootCmd.PersistentFlags().StringVar(&flagRole, "role", "observer", "Your role: interviewer, candidate or observer")
}
