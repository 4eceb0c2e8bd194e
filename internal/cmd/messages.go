package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/cli"
	"github.com/openclaw/status-relay/internal/outfmt"
)

func newMessagesCmd() *cobra.Command {
	var (
		limit  int
		cursor string
		since  string
	)
	cmd := &cobra.Command{
		Use:   "messages <chat>",
		Short: "Show recent messages for a chat (id or name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := backendClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			chat, err := resolveChat(ctx, client, args[0])
			if err != nil {
				return err
			}
			page, err := client.ChatMessages(ctx, chat.ID, cursor, limit)
			if err != nil {
				return err
			}
			if since != "" {
				cutoff, err := cli.ParseSince(since, time.Now())
				if err != nil {
					return err
				}
				cutoffMs := cutoff.UnixMilli()
				kept := page.Messages[:0]
				for _, msg := range page.Messages {
					if msg.When() >= cutoffMs {
						kept = append(kept, msg)
					}
				}
				page.Messages = kept
			}

			if outfmt.IsJSONL(ctx) {
				items := make([]any, len(page.Messages))
				for i, msg := range page.Messages {
					items[i] = msg
				}
				return writeJSONL(cmd, items)
			}
			if outfmt.IsJSON(ctx) {
				return writeJSON(cmd, page)
			}

			out := cmd.OutOrStdout()
			for _, msg := range page.Messages {
				ts := time.UnixMilli(msg.When()).Format(time.RFC3339)
				fmt.Fprintf(out, "%s  %s  %s\n", ts, shortSender(msg.From), msg.Text)
			}
			if page.Cursor != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "next cursor: %s\n", page.Cursor)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum messages to fetch")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().StringVar(&since, "since", "", `Only show messages after this time ("2h ago", "yesterday", RFC3339)`)
	return cmd
}

func shortSender(from string) string {
	if len(from) <= 12 {
		return from
	}
	return from[:12] + "..."
}
