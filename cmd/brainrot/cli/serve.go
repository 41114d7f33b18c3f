package cli

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout so assistants can push,
pop, list, delete and search contexts. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Runtime, Version,
			mcp.WithBus(app.Bus),
			mcp.WithObserver(app.Observer),
			mcp.WithSearchDefaults(cfg.Search.Limit, cfg.Search.Threshold),
		)
		return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
