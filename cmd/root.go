package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/unclewu3242592726/tritalk/internal/config"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
)

var (
	configFile string
	verbose    bool
	version    = "dev"
	commit     = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tritalk",
	Short: "Three LLM agents talking with you and each other",
	Long: `TriTalk runs a conversation between a human and three agents backed by
OpenAI, Claude and Gemini. Agents take turns one at a time: a human message
wakes a random agent, and every reply hands the floor to another one.

Quick Start:
  tritalk serve -f etc/tritalk.yaml      # Run the server
  tritalk console                        # Join from the terminal
  tritalk export --format md             # Dump the transcript`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logx.SetLevel(logx.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "etc/tritalk.yaml", "the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(serveCmd, consoleCmd, exportCmd, resetCmd)
}

func loadConfig() (config.Config, error) {
	var c config.Config
	if err := conf.Load(configFile, &c); err != nil {
		return c, fmt.Errorf("load config %s: %w", configFile, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", configFile, err)
	}
	return c, nil
}
