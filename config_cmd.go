package main

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/config"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect the configuration casefill would use.

Examples:
  casefill config show
  casefill config show --host caramel.local --json`,
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Long: `Print the configuration after defaults, config file, credentials file,
environment and flags are applied. The password is redacted.

Examples:
  casefill config show`,
		RunE: runConfigShow,
		Args: cobra.NoArgs,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	return renderEffective(cmd.OutOrStdout(), cc.Cfg, cc.Flags.JSON)
}

// renderEffective writes cfg as TOML (or JSON) with secrets redacted.
func renderEffective(w io.Writer, cfg *config.Config, asJSON bool) error {
	shown := *cfg
	if shown.Server.Password != "" {
		shown.Server.Password = redacted
	}

	if asJSON {
		return printJSON(w, shown)
	}

	if err := toml.NewEncoder(w).Encode(shown); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}
