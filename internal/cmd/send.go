package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/dryrun"
	"github.com/openclaw/status-relay/internal/outfmt"
	"github.com/openclaw/status-relay/internal/validation"
)

// sendReceipt is printed after a successful send.
type sendReceipt struct {
	ReceiptID string `json:"receipt_id"`
	ChatID    string `json:"chat_id"`
	ChatName  string `json:"chat_name,omitempty"`
	SentAt    string `json:"sent_at"`
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <chat> <message...>",
		Short: "Send a direct message to a chat (id or name)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if err := validation.ValidateMessageText(text); err != nil {
				return err
			}

			client, _, err := backendClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			chat, err := resolveChat(ctx, client, args[0])
			if err != nil {
				return err
			}
			if chat.ChatType != backend.ChatTypeOneToOne {
				return fmt.Errorf("chat %q is not a direct chat", args[0])
			}

			if dryrun.IsEnabled(ctx) {
				preview := dryrun.Preview{
					Action: "send message to",
					Target: fmt.Sprintf("%s (%s)", chat.Name, chat.ID),
					Details: []dryrun.Detail{
						{Label: "text", Value: text},
					},
				}
				preview.Write(cmd.OutOrStdout())
				return nil
			}

			if err := client.SendOneToOneMessage(ctx, chat.ID, text); err != nil {
				return err
			}

			receipt := sendReceipt{
				ReceiptID: ulid.Make().String(),
				ChatID:    chat.ID,
				ChatName:  chat.Name,
				SentAt:    time.Now().UTC().Format(time.RFC3339),
			}
			if outfmt.IsJSON(cmd.Context()) {
				return writeJSON(cmd, receipt)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", receipt.ReceiptID, chat.ID)
			return nil
		},
	}
	return cmd
}
