package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/config"
)

// Version is stamped at build time.
var Version = "dev"

var (
	cfgFile  string
	jsonLogs bool

	v   = config.New()
	cfg *config.Config
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "brainrot",
	Short: "Persistent context memory for AI coding sessions",
	Long: `Brainrot stores the context you build up while working with an AI assistant
(architecture decisions, patterns, TODOs, tech debt) and brings it back in later
sessions, by key, by tag or by semantic similarity.

Run "brainrot serve" to expose the store to assistants over MCP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.brainrot/config.yaml)")
	flags.String("data-dir", "", "directory holding the database (default $HOME/.brainrot)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&jsonLogs, "json", false, "Emit logs as JSON")

	v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	v.BindPFlag("log.verbose", flags.Lookup("verbose"))
}

func loadConfig() error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if jsonLogs {
		c.Log.Format = "json"
	}
	cfg = c
	return nil
}
