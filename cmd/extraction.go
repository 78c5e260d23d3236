package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

var (
	lifecycleUser string
	latestType    string
)

var extractionCmd = &cobra.Command{
	Use:   "extraction",
	Short: "Inspect and manage saved extraction attempts",
}

var extractionListCmd = &cobra.Command{
	Use:   "list [subject-id]",
	Short: "List every extraction attempt for a subject, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		records, err := s.ListBySubject(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "list extractions for %s", args[0])
		}
		return printJSON(records)
	},
}

var extractionLatestCmd = &cobra.Command{
	Use:   "latest [subject-id]",
	Short: "Show the active extraction of a document type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ := model.ExtractionType(latestType)
		if !typ.Valid() {
			return eris.Errorf("unknown extraction type %q", latestType)
		}

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		rec, err := s.GetLatestActive(ctx, args[0], typ)
		if err != nil {
			return eris.Wrapf(err, "latest %s extraction for %s", latestType, args[0])
		}
		return printJSON(rec)
	},
}

var extractionDeactivateCmd = &cobra.Command{
	Use:   "deactivate [extraction-id]",
	Short: "Deactivate an extraction attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		if err := s.Deactivate(ctx, args[0], lifecycleUser); err != nil {
			return eris.Wrapf(err, "deactivate %s", args[0])
		}
		zap.L().Info("extraction deactivated", zap.String("extraction_id", args[0]))
		return nil
	},
}

var extractionRestoreCmd = &cobra.Command{
	Use:   "restore [subject-id] [extraction-id]",
	Short: "Make a historical extraction the active one again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		if err := s.Restore(ctx, args[0], args[1], lifecycleUser); err != nil {
			return eris.Wrapf(err, "restore %s", args[1])
		}
		zap.L().Info("extraction restored",
			zap.String("subject_id", args[0]),
			zap.String("extraction_id", args[1]),
		)
		return nil
	},
}

var extractionAuditCmd = &cobra.Command{
	Use:   "audit [subject-id]",
	Short: "Show the audit trail for a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		entries, err := s.ListAudit(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "audit for %s", args[0])
		}
		return printJSON(entries)
	},
}

func init() {
	extractionLatestCmd.Flags().StringVar(&latestType, "type", string(model.TypeLandRegistry), "document type (land_registry|permit|shared_building)")

	extractionCmd.PersistentFlags().StringVar(&lifecycleUser, "user", "cli", "user recorded in the audit trail")

	extractionCmd.AddCommand(extractionListCmd, extractionLatestCmd, extractionDeactivateCmd, extractionRestoreCmd, extractionAuditCmd)
	rootCmd.AddCommand(extractionCmd)
}
