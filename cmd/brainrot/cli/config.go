package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/brainrot/internal/credential"
	"github.com/felixgeelhaar/brainrot/internal/store"
)

var revealSecret bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

// openVault opens only the store, so keys can be set before the embedder
// that needs them can start.
func openVault() (*store.SQLiteStore, *credential.Vault, error) {
	s, err := store.Open(cfg.DatabasePath(), nil)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := credential.NewManager()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, credential.NewVault(s, mgr), nil
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a stored configuration value (API keys are encrypted)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, vault, err := openVault()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := vault.Set(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to set config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a stored configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, vault, err := openVault()
		if err != nil {
			return err
		}
		defer s.Close()

		val, err := vault.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case val == "":
			fmt.Fprintln(out, "(not set)")
		case credential.IsSecret(args[0]) && !revealSecret:
			fmt.Fprintln(out, credential.MaskSecret(val))
		default:
			fmt.Fprintln(out, val)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(v.AllSettings())
		if err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd, configShowCmd)
	configGetCmd.Flags().BoolVar(&revealSecret, "reveal", false, "Print secrets unmasked")
}
