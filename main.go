package main

import (
	"log/slog"
	"os"

	"github.com/cottand/typeflow/cmd"
	"github.com/cottand/typeflow/internal/log"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "typeflow [subcommand]",
	Short: "typeflow\n a flow-sensitive type checker for PHP syntax trees",
	PersistentPreRun: func(*cobra.Command, []string) {
		log.SetLevel(slog.Level(*logLevel))
	},
	SilenceUsage: true,
}

var logLevel *int

func init() {
	logLevel = rootCmd.PersistentFlags().IntP("log-level", "l", int(slog.LevelError), "log level")
	rootCmd.AddCommand(cmd.AnalyzeCmd)
	rootCmd.AddCommand(cmd.SignatureCmd)
	rootCmd.AddCommand(cmd.ConfigCmd)
}
