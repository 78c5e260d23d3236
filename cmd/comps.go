package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamay-group/appraisal-engine/internal/comps"
)

var (
	compsSubject string
	compsSheet   string
	compsUser    string
)

var compsCmd = &cobra.Command{
	Use:   "comps",
	Short: "Manage comparable sale records",
}

var compsImportCmd = &cobra.Command{
	Use:   "import [workbook.xlsx]",
	Short: "Import comparable sales from an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, skipped, err := comps.ImportFile(args[0], comps.ImportOptions{SheetName: compsSheet})
		if err != nil {
			return eris.Wrapf(err, "import %s", args[0])
		}

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		inserted, err := s.UpsertComparables(ctx, compsSubject, records)
		if err != nil {
			return eris.Wrap(err, "upsert comparables")
		}

		zap.L().Info("comparables imported",
			zap.String("subject_id", compsSubject),
			zap.Int("inserted", inserted),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

var compsIncludeCmd = &cobra.Command{
	Use:   "include [comparable-id]",
	Short: "Include a comparable in valuation statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setIncluded(cmd, args[0], true) },
}

var compsExcludeCmd = &cobra.Command{
	Use:   "exclude [comparable-id]",
	Short: "Exclude a comparable from valuation statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setIncluded(cmd, args[0], false) },
}

func setIncluded(cmd *cobra.Command, id string, included bool) error {
	ctx := cmd.Context()

	s, err := initStore(ctx)
	if err != nil {
		return eris.Wrap(err, "init store")
	}
	defer s.Close()

	if err := s.SetComparableIncluded(ctx, id, included, compsUser); err != nil {
		return eris.Wrapf(err, "set included=%t for %s", included, id)
	}

	zap.L().Info("comparable updated", zap.String("comparable_id", id), zap.Bool("included", included))
	return nil
}

func init() {
	compsImportCmd.Flags().StringVar(&compsSubject, "subject", "", "subject id the comparables belong to")
	compsImportCmd.Flags().StringVar(&compsSheet, "sheet", "", "worksheet name (defaults to the first sheet)")
	_ = compsImportCmd.MarkFlagRequired("subject")

	compsCmd.PersistentFlags().StringVar(&compsUser, "user", "cli", "user recorded in the audit trail")

	compsCmd.AddCommand(compsImportCmd, compsIncludeCmd, compsExcludeCmd)
	rootCmd.AddCommand(compsCmd)
}
