package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/config"
	"github.com/openclaw/status-relay/internal/outfmt"
)

// accountProbe is the status report for one configured account.
type accountProbe struct {
	Account   string `json:"account"`
	Port      int    `json:"port"`
	Healthy   bool   `json:"healthy"`
	LoggedIn  bool   `json:"logged_in"`
	PublicKey string `json:"public_key,omitempty"`
	Chats     int    `json:"chats"`
	Disabled  bool   `json:"disabled,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the configured status backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := config.LoadAll()
			if err != nil {
				return err
			}

			probes := make([]accountProbe, 0, len(accounts))
			for _, account := range accounts {
				probes = append(probes, probeAccount(cmd, account))
			}

			ctx := cmd.Context()
			if outfmt.IsJSONL(ctx) {
				items := make([]any, len(probes))
				for i, p := range probes {
					items[i] = p
				}
				return writeJSONL(cmd, items)
			}
			if outfmt.IsJSON(ctx) {
				return writeJSON(cmd, probes)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tPORT\tHEALTHY\tLOGGED IN\tCHATS")
			for _, p := range probes {
				fmt.Fprintf(w, "%s\t%d\t%v\t%v\t%d\n", p.Account, p.Port, p.Healthy, p.LoggedIn, p.Chats)
			}
			return w.Flush()
		},
	}
}

func probeAccount(cmd *cobra.Command, account config.Account) accountProbe {
	probe := accountProbe{
		Account:  account.Name,
		Port:     account.Port,
		Disabled: account.Disabled,
	}

	client := backend.New(account.Port)
	if flags.Timeout > 0 {
		client.HTTP.Timeout = flags.Timeout
	}
	ctx := cmd.Context()

	probe.Healthy = client.Health(ctx)
	if !probe.Healthy {
		return probe
	}
	if settings, err := client.GetSettings(ctx); err == nil && settings.PublicKey != "" {
		probe.LoggedIn = true
		probe.PublicKey = settings.PublicKey
	}
	if chats, err := client.ActiveChats(ctx); err == nil {
		for _, chat := range chats {
			if chat.Relevant() {
				probe.Chats++
			}
		}
	}
	return probe
}
