package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/config"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored status accounts",
	}
	cmd.AddCommand(newAuthAddCmd())
	cmd.AddCommand(newAuthListCmd())
	cmd.AddCommand(newAuthRemoveCmd())
	cmd.AddCommand(newAuthLoginCmd())
	return cmd
}

func newAuthAddCmd() *cobra.Command {
	var account config.Account
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store an account in the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if account.Name == "" {
				account.Name = "default"
			}
			if err := config.SaveAccount(account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved account %q (port %d)\n", account.Name, account.Port)
			return nil
		},
	}
	cmd.Flags().StringVar(&account.Name, "name", "", "Account name (default: default)")
	cmd.Flags().IntVar(&account.Port, "port", 0, "status-backend port (required)")
	cmd.Flags().StringVar(&account.KeyUID, "key-uid", "", "Key UID for backend login")
	cmd.Flags().StringVar(&account.Password, "password", "", "Password for backend login")
	cmd.Flags().StringVar(&account.RoutingKey, "routing-key", "", "Routing key for this account's events")
	cmd.Flags().BoolVar(&account.Disabled, "disabled", false, "Store the account but skip it in the gateway")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := config.ListAccounts()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no accounts configured")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPORT\tROUTING KEY\tDISABLED")
			for _, name := range names {
				account, err := config.LoadAccount(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%v\n", account.Name, account.Port, account.RoutingKey, account.Disabled)
			}
			return w.Flush()
		},
	}
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteAccount(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed account %q\n", args[0])
			return nil
		},
	}
}

func newAuthLoginCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Initialize the backend and log the stored key pair in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, account, err := backendClient()
			if err != nil {
				return err
			}
			if account.KeyUID == "" || account.Password == "" {
				return fmt.Errorf("account %q has no key-uid/password stored; re-add it with --key-uid and --password", account.Name)
			}
			ctx := cmd.Context()

			if dataDir != "" {
				if err := client.InitializeApplication(ctx, dataDir); err != nil {
					return err
				}
			}
			if err := client.LoginAccount(ctx, account.KeyUID, account.Password); err != nil {
				return err
			}

			// Confirm the login stuck before reporting success.
			settings, err := client.GetSettings(ctx)
			if err != nil {
				return fmt.Errorf("login submitted but settings unavailable: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", shortSender(settings.PublicKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Initialize the backend with this data directory before login")
	return cmd
}
