package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/outfmt"
)

// errUnhealthy marks a failed health probe so it maps to its own exit
// code.
var errUnhealthy = errors.New("status backend is not healthy")

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the account's status backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, account, err := backendClient()
			if err != nil {
				return err
			}
			healthy := client.Health(cmd.Context())

			if outfmt.IsJSON(cmd.Context()) {
				if err := writeJSON(cmd, map[string]any{
					"account": account.Name,
					"port":    account.Port,
					"healthy": healthy,
				}); err != nil {
					return err
				}
			} else if healthy {
				fmt.Fprintf(cmd.OutOrStdout(), "ok: backend on port %d is healthy\n", account.Port)
			}

			if !healthy {
				return fmt.Errorf("port %d: %w", account.Port, errUnhealthy)
			}
			return nil
		},
	}
}
