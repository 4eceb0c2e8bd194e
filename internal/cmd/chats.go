package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/outfmt"
)

func newChatsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"chat"},
		Short:   "List the account's chats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := backendClient()
			if err != nil {
				return err
			}
			chats, err := client.ActiveChats(cmd.Context())
			if err != nil {
				return err
			}
			if !all {
				relevant := chats[:0]
				for _, chat := range chats {
					if chat.Relevant() {
						relevant = append(relevant, chat)
					}
				}
				chats = relevant
			}

			ctx := cmd.Context()
			if outfmt.IsJSONL(ctx) {
				items := make([]any, len(chats))
				for i, chat := range chats {
					items[i] = chat
				}
				return writeJSONL(cmd, items)
			}
			if outfmt.IsJSON(ctx) {
				return writeJSON(cmd, chats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tNAME")
			for _, chat := range chats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", chat.ID, chatTypeLabel(chat.ChatType), chat.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive and public chats")
	return cmd
}

func chatTypeLabel(t int) string {
	switch t {
	case backend.ChatTypeOneToOne:
		return "direct"
	case backend.ChatTypePublic:
		return "public"
	case backend.ChatTypePrivateGroup:
		return "group"
	default:
		return fmt.Sprintf("type-%d", t)
	}
}
