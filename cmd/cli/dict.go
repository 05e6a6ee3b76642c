package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keshon/yomiage/internal/phonetic"
	"github.com/keshon/yomiage/internal/settings"
	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Manage a guild's reading dictionary",
}

var dictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dictionary rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd.Context(), func(ctx context.Context, svc *settings.Service) error {
			words, err := svc.Words(ctx, guildFlag)
			if err != nil {
				return err
			}
			if len(words) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dictionary rules.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range words {
				fmt.Fprintf(w, "%s\t→\t%s\n", e.Before, e.After)
			}
			return w.Flush()
		})
	},
}

var dictAddCmd = &cobra.Command{
	Use:   "add <word> <reading>",
	Short: "Add or replace a rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd.Context(), func(ctx context.Context, svc *settings.Service) error {
			op, err := svc.PutWord(ctx, st.DictionaryEntry{GuildID: guildFlag, Before: args[0], After: args[1]})
			if err != nil {
				return err
			}
			verb := "Added"
			if op == st.DictionaryUpdate {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s → %s\n", verb, args[0], args[1])
			return nil
		})
	},
}

var dictRemoveCmd = &cobra.Command{
	Use:     "remove <word>",
	Aliases: []string{"rm"},
	Short:   "Remove a rule",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd.Context(), func(ctx context.Context, svc *settings.Service) error {
			removed, err := svc.RemoveWord(ctx, guildFlag, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%q is not in the dictionary", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

var phoneticCmd = &cobra.Command{
	Use:   "phonetic <word>",
	Short: "Show how the phonetic table spells a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := phonetic.Load(cfg.PhoneticDictPath)
		if err != nil {
			return err
		}
		reading, ok := table.Lookup(args[0])
		if !ok {
			return fmt.Errorf("%q is not in %s", args[0], cfg.PhoneticDictPath)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reading)
		return nil
	},
}

func init() {
	dictCmd.AddCommand(dictListCmd, dictAddCmd, dictRemoveCmd)
	rootCmd.AddCommand(dictCmd, phoneticCmd)
}

// withSettings runs fn against a settings service with no update bus. The
// bot picks up the change on its next load.
func withSettings(ctx context.Context, fn func(context.Context, *settings.Service) error) error {
	return withStore(ctx, func(store storage.Store) error {
		return fn(ctx, settings.New(store, nil))
	})
}
