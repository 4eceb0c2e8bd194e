package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc <method> [params-json]",
		Short: "Make a raw JSON-RPC call against the status backend",
		Long: `Make a raw JSON-RPC call through the backend's CallRPC endpoint.
Params are a JSON array, e.g.:

  status-relay rpc wakuext_chatMessages '["0xchat", "", 10]'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params []any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("params must be a JSON array: %w", err)
				}
			}

			client, _, err := backendClient()
			if err != nil {
				return err
			}
			raw, err := client.CallRPCRaw(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}

			var result any
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &result); err != nil {
					return fmt.Errorf("decode RPC result: %w", err)
				}
			}
			return writeJSON(cmd, result)
		},
	}
}
