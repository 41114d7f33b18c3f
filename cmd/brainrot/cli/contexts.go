package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/runtime"
	"github.com/felixgeelhaar/brainrot/internal/store"
)

var (
	pushTags     []string
	pushPriority string
	pushSummary  string
	pushFile     string

	popNoInstructions bool
	popJSON           bool

	listTag     string
	listPattern string
	listLimit   int
	listJSON    bool
)

var pushCmd = &cobra.Command{
	Use:   "push <key> [content]",
	Short: "Store context under a key",
	Long: `Store context under a key, replacing any context already stored there.
Content is taken from the second argument, --file, or stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd, args)
		if err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		rec, err := app.Runtime.Push(cmd.Context(), runtime.PushRequest{
			Key:      args[0],
			Content:  content,
			Summary:  pushSummary,
			Tags:     runtime.ParseTags(pushTags),
			Priority: pushPriority,
			Source:   runtime.DefaultSource,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context '%s' stored (%d chars)\n", rec.Key, len([]rune(rec.Content)))
		if app.Runtime.SemanticEnabled() && !app.Runtime.Indexed(cmd.Context(), rec.ID) {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("warning: context was not indexed for semantic search; run `brainrot reindex`"))
		}
		return nil
	},
}

func readContent(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 2 && args[1] != "-":
		return args[1], nil
	case pushFile != "":
		data, err := os.ReadFile(pushFile) // #nosec G304
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", pushFile, err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
}

var popCmd = &cobra.Command{
	Use:   "pop <key>",
	Short: "Retrieve the context stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		rec, err := app.Runtime.Pop(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if popJSON {
			return writeJSON(out, rec)
		}
		printRecord(out, rec)
		if !popNoInstructions {
			fmt.Fprintln(out)
			fmt.Fprintln(out, dimStyle.Render(runtime.Instructions(rec)))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored contexts, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		recs, err := app.Runtime.List(cmd.Context(), store.ListOptions{
			Tag:        listTag,
			TagPattern: listPattern,
			Limit:      listLimit,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(out, "No contexts found.")
			return nil
		}
		fmt.Fprintln(out, recordTable(recs, false))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"rm"},
	Short:   "Delete the context stored under a key",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Runtime.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context '%s' deleted\n", args[0])
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show stored keys grouped by tag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		text, err := app.Runtime.Summary(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(pushCmd, popCmd, listCmd, deleteCmd, summaryCmd)

	pushCmd.Flags().StringSliceVarP(&pushTags, "tags", "t", nil, "Comma separated tags")
	pushCmd.Flags().StringVarP(&pushPriority, "priority", "p", runtime.DefaultPriority, "Priority (low, medium, high)")
	pushCmd.Flags().StringVar(&pushSummary, "summary", "", "Summary (default derived from content)")
	pushCmd.Flags().StringVarP(&pushFile, "file", "f", "", "Read content from a file")

	popCmd.Flags().BoolVar(&popNoInstructions, "no-instructions", false, "Omit application instructions")
	popCmd.Flags().BoolVar(&popJSON, "output-json", false, "Print the record as JSON")

	listCmd.Flags().StringVar(&listTag, "tag", "", "Only contexts with this tag")
	listCmd.Flags().StringVar(&listPattern, "pattern", "", "Only contexts with a tag matching this glob")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of contexts (0 for all)")
	listCmd.Flags().BoolVar(&listJSON, "output-json", false, "Print records as JSON")
}
