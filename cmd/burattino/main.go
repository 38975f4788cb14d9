package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "burattino",
	Short: "burattino is a streaming chat client with tool calling",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(cmd)
	},
}

func initLogger(cmd *cobra.Command) {
	levelString, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelString)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "burattino.yaml", "path to the configuration file")

	rootCmd.AddCommand(newChatCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
