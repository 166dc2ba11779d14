package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/matchfeed/internal/dispatch"
	"github.com/rickgao/matchfeed/internal/fixtures"
)

func newSeedCmd(configPath *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load subjects, counterparties and campaigns from a fixtures file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			set, err := fixtures.Load(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := set.Apply(ctx, store); err != nil {
				return fmt.Errorf("apply fixtures: %w", err)
			}

			logger.Info("fixtures loaded",
				"file", file,
				"subjects", len(set.Subjects),
				"counterparties", len(set.Counterparties),
				"campaigns", len(set.Campaigns),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to fixtures YAML")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUnclaimedCmd(configPath *string) *cobra.Command {
	var (
		subject string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "unclaimed",
		Short: "List a subject's matches that were never delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			// Listing never scores or delivers.
			dispatcher := dispatch.New(store, nil, nil, logger)
			matches, err := dispatcher.ListUnclaimed(ctx, subject, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MATCH\tCOUNTERPARTY\tCAMPAIGN\tSCORE\tSCORED BY\tCREATED")
			for _, m := range matches {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					m.ID, m.CounterpartyID, m.CampaignID, m.OverallScore, m.ScoredBy,
					m.CreatedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject id")
	cmd.Flags().IntVar(&limit, "limit", dispatch.DefaultUnclaimedLimit, "maximum matches to list")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
