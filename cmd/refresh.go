package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/company-intel/internal/model"
)

var (
	refreshDomain   string
	refreshCategory string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-run a single category for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat := model.Category(refreshCategory)
		if !cat.Valid() {
			return eris.Errorf("unknown category: %s", refreshCategory)
		}

		env, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.RefreshCategory(ctx, refreshDomain, cat)
		if err != nil {
			return eris.Wrap(err, "refresh category")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshDomain, "domain", "", "company domain (required)")
	refreshCmd.Flags().StringVar(&refreshCategory, "category", "", "category to refresh (required)")
	_ = refreshCmd.MarkFlagRequired("domain")
	_ = refreshCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(refreshCmd)
}
