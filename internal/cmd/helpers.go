package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/status-relay/internal/backend"
	"github.com/openclaw/status-relay/internal/config"
	"github.com/openclaw/status-relay/internal/outfmt"
	"github.com/openclaw/status-relay/internal/resolve"
)

// backendClient resolves the target account from --account/--port and
// builds a client for it.
func backendClient() (*backend.Client, config.Account, error) {
	account, err := config.ResolveAccount(flags.Account, flags.Port)
	if err != nil {
		return nil, config.Account{}, err
	}
	client := backend.New(account.Port)
	if flags.Timeout > 0 {
		client.HTTP.Timeout = flags.Timeout
	}
	return client, account, nil
}

// writeJSON renders v honoring the context's jq query and compactness.
func writeJSON(cmd *cobra.Command, v any) error {
	ctx := cmd.Context()
	return outfmt.WriteJSONFiltered(cmd.OutOrStdout(), v, outfmt.GetQuery(ctx), outfmt.IsCompact(ctx))
}

// writeJSONL renders each item on its own line, honoring the jq query.
func writeJSONL(cmd *cobra.Command, items []any) error {
	ctx := cmd.Context()
	query := outfmt.GetQuery(ctx)
	for _, item := range items {
		v, err := outfmt.ApplyQuery(item, query)
		if err != nil {
			return err
		}
		if err := outfmt.WriteJSONMaybeCompact(cmd.OutOrStdout(), v, true); err != nil {
			return err
		}
	}
	return nil
}

// resolveChat turns a chat reference (exact id or fuzzy name) into a
// chat. Hex-looking references are treated as ids first.
func resolveChat(ctx context.Context, client *backend.Client, ref string) (backend.Chat, error) {
	chats, err := client.ActiveChats(ctx)
	if err != nil {
		return backend.Chat{}, err
	}

	var candidates []resolve.Named
	byID := make(map[string]backend.Chat, len(chats))
	for _, chat := range chats {
		if !chat.Relevant() {
			continue
		}
		byID[chat.ID] = chat
		if chat.Name != "" {
			candidates = append(candidates, resolve.Named{ID: chat.ID, Name: chat.Name})
		}
	}

	if chat, ok := byID[ref]; ok {
		return chat, nil
	}

	id, err := resolve.FuzzyMatch(ref, candidates)
	if err != nil {
		return backend.Chat{}, fmt.Errorf("resolve chat %q: %w", ref, err)
	}
	return byID[id], nil
}
