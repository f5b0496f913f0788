package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/xk6-locator/cmd/state"
	"github.com/liuxd6825/xk6-locator/version"
)

func getCmdVersion(gs *state.GlobalState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit. With --json the Go runtime and build commit are included.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !asJSON {
				gs.Console.Printf("xk6-locator v%s\n", version.Full())
				return nil
			}
			if err := json.NewEncoder(gs.Console.Stdout).Encode(version.Details()); err != nil {
				return fmt.Errorf("failed to produce JSON details: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version details as JSON")

	return cmd
}
