package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/config"
	"github.com/openclaw/status-relay/internal/skill"
)

func newSkillCmd() *cobra.Command {
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Generate the workspace skill file for agents",
		Long: `Skill probes every configured account and writes a workspace skill
file with the accounts, their chats, and quick command examples, so
agents can discover the workspace without trial and error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := config.LoadAll()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var data skill.WorkspaceData
			for _, account := range accounts {
				info := skill.AccountInfo{Name: account.Name, Port: account.Port}
				client := backend.New(account.Port)
				if flags.Timeout > 0 {
					client.HTTP.Timeout = flags.Timeout
				}
				if settings, err := client.GetSettings(ctx); err == nil {
					info.PublicKey = shortSender(settings.PublicKey)
				}
				if chats, err := client.ActiveChats(ctx); err == nil {
					for _, chat := range chats {
						if !chat.Relevant() {
							continue
						}
						info.Chats = append(info.Chats, skill.ChatInfo{
							ID:   chat.ID,
							Type: chatTypeLabel(chat.ChatType),
							Name: chat.Name,
						})
					}
				}
				data.Accounts = append(data.Accounts, info)
			}

			if toStdout {
				return skill.Render(cmd.OutOrStdout(), data)
			}
			path, err := skill.WriteWorkspaceSkill(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote workspace skill to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the skill instead of writing the file")
	return cmd
}
