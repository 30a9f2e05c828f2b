package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
)

var profileDomain string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Aggregate the full profile for a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, events, err := env.Orchestrator.Aggregate(ctx, profileDomain)
		if err != nil {
			return eris.Wrap(err, "aggregate")
		}

		if snap == nil {
			// Fresh pass: log progress as it streams, then read back the
			// persisted snapshot.
			var fresh []model.Category
			for ev := range events {
				switch ev.Type {
				case model.EventCategoryComplete:
					fresh = append(fresh, ev.Category)
					zap.L().Info("category complete",
						zap.String("category", string(ev.Category)),
						zap.Strings("sources", ev.Sources),
					)
				case model.EventCategoryError:
					zap.L().Warn("category failed",
						zap.String("category", string(ev.Category)),
						zap.String("error", ev.Error),
					)
				}
			}
			snap, err = env.Orchestrator.Snapshot(ctx, profileDomain)
			if err != nil {
				return eris.Wrap(err, "load snapshot")
			}
			snap.MarkFresh(fresh...)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileDomain, "domain", "", "company domain (required)")
	_ = profileCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(profileCmd)
}
