package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brainrot/internal/memory"
	"github.com/felixgeelhaar/brainrot/internal/ui"
	"github.com/felixgeelhaar/brainrot/internal/ui/tui"
)

var interactive bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Regenerate the embedding of every context",
	Long: `Regenerate the embedding of every context. Run after enabling embedding,
switching provider or model, or changing embedding.dimensions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var (
			report *memory.ReindexReport
			rerr   error
		)
		if interactive {
			model := tui.NewModel("Reindexing contexts")
			program := tea.NewProgram(model, tea.WithContext(cmd.Context()))
			t := tui.NewTUI(program)
			app.Runtime.SetUI(t)

			// Quitting the interface cancels the run.
			ctx, cancel := context.WithCancel(cmd.Context())
			done := make(chan struct{})
			go func() {
				defer close(done)
				report, rerr = app.Runtime.Reindex(ctx)
				t.Finish(reportLine(report, rerr))
			}()

			_, err := program.Run()
			cancel()
			<-done
			if err != nil {
				return fmt.Errorf("failed to run interface: %w", err)
			}
		} else {
			app.Runtime.SetUI(ui.NewLineUI(cmd.ErrOrStderr()))
			report, rerr = app.Runtime.Reindex(cmd.Context())
		}

		if rerr != nil {
			return rerr
		}
		fmt.Fprintln(cmd.OutOrStdout(), reportLine(report, nil))
		if n := len(report.Failures); n > 0 {
			return fmt.Errorf("%d contexts failed to index", n)
		}
		return nil
	},
}

func reportLine(r *memory.ReindexReport, err error) string {
	if err != nil {
		return "Reindex failed: " + err.Error()
	}
	return fmt.Sprintf("Reindexed %d of %d contexts (%d failed)", r.Indexed, r.Total, len(r.Failures))
}

func init() {
	RootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Show a progress interface")
}
