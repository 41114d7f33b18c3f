package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/store"
)

var (
	searchLimit     int
	searchThreshold float64
	searchJSON      bool
)

// rankFlags resolves limit and threshold, falling back to the configured
// defaults for flags the user did not set.
func rankFlags(cmd *cobra.Command) (int, float64) {
	limit, threshold := cfg.Search.Limit, cfg.Search.Threshold
	if cmd.Flags().Changed("limit") {
		limit = searchLimit
	}
	if cmd.Flags().Changed("threshold") {
		threshold = searchThreshold
	}
	return limit, threshold
}

func printHits(cmd *cobra.Command, recs []*store.Record, enabled bool) error {
	if !enabled {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("Semantic search is disabled (embedding.enabled=false)."))
	}
	out := cmd.OutOrStdout()
	if searchJSON {
		return writeJSON(out, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No matching contexts.")
		return nil
	}
	fmt.Fprintln(out, recordTable(recs, true))
	return nil
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Find contexts by semantic similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		limit, threshold := rankFlags(cmd)
		recs, err := app.Runtime.Search(cmd.Context(), strings.Join(args, " "), limit, threshold)
		if err != nil {
			return err
		}
		return printHits(cmd, recs, app.Runtime.SemanticEnabled())
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <key>",
	Short: "Find contexts similar to the one stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		limit, threshold := rankFlags(cmd)
		recs, err := app.Runtime.Related(cmd.Context(), args[0], limit, threshold)
		if err != nil {
			return err
		}
		return printHits(cmd, recs, app.Runtime.SemanticEnabled())
	},
}

func init() {
	RootCmd.AddCommand(searchCmd, relatedCmd)
	for _, c := range []*cobra.Command{searchCmd, relatedCmd} {
		c.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results (default from search.limit)")
		c.Flags().Float64Var(&searchThreshold, "threshold", 0.5, "Minimum similarity score, 0 to 2 (default from search.threshold)")
		c.Flags().BoolVar(&searchJSON, "output-json", false, "Print records as JSON")
	}
}
