package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/seed"
	"github.com/felixgeelhaar/brainrot/internal/ui"
)

var (
	cleanupVerbose bool
	validateOnly   bool
)

var cleanupTagsCmd = &cobra.Command{
	Use:   "cleanup-tags",
	Short: "Normalize stored tags (strip brackets and quotes, lowercase, dedupe)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Runtime.CleanupTags(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cleanupVerbose {
			for _, c := range report.Changes {
				fmt.Fprintf(out, "  %s: %v -> %v\n", c.Key, c.Before, c.After)
			}
		}
		fmt.Fprintf(out, "Total contexts: %d\n", report.Total)
		fmt.Fprintf(out, "Fixed: %d\n", report.Fixed)
		fmt.Fprintf(out, "Already clean: %d\n", report.AlreadyClean)
		fmt.Fprintf(out, "Unique tags (%d): %s\n", len(report.UniqueTags), strings.Join(report.UniqueTags, ", "))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import contexts from a YAML or JSON seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		res := seed.Validate(f, guard.New(cfg.Policy))
		for _, w := range res.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("warning: "+w))
		}
		if !res.Valid {
			for _, e := range res.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "error: "+e)
			}
			return errors.New("invalid seed file")
		}
		if validateOnly {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d contexts)\n", args[0], len(f.Contexts))
			return nil
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := seed.Import(cmd.Context(), app.Runtime, f, ui.NewLineUI(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d contexts\n", report.Imported, len(f.Contexts))
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d contexts failed to import", len(report.Failed))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cleanupTagsCmd, importCmd)
	cleanupTagsCmd.Flags().BoolVar(&cleanupVerbose, "show-changes", false, "List every changed context")
	importCmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Check the file without importing")
}
