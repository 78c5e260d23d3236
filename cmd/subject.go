package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamay-group/appraisal-engine/internal/model"
	"github.com/shamay-group/appraisal-engine/internal/valuation"
)

var (
	subjectAddress string
	subjectCity    string
	subjectUser    string

	areaBuilt       float64
	areaBalcony     float64
	areaCoefficient float64
	areaFromLatest  bool
)

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage appraisal subjects",
}

var subjectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new appraisal subject",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		subj, err := s.CreateSubject(ctx, subjectAddress, subjectCity)
		if err != nil {
			return eris.Wrap(err, "create subject")
		}

		zap.L().Info("subject created", zap.String("subject_id", subj.ID), zap.String("address", subj.Address))
		return printJSON(subj)
	},
}

var subjectAreaCmd = &cobra.Command{
	Use:   "set-area [subject-id]",
	Short: "Set the subject's built and balcony areas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		area := model.SubjectArea{Built: areaBuilt, Balcony: areaBalcony, Coefficient: areaCoefficient}
		if areaFromLatest {
			rec, err := s.GetLatestActive(ctx, args[0], model.TypeLandRegistry)
			if err != nil {
				return eris.Wrapf(err, "load active land registry extraction for %s", args[0])
			}
			derived, ok := valuation.AreaFromFields(rec.Fields)
			if !ok {
				return eris.Errorf("extraction %s carries no usable registered area", rec.ID)
			}
			derived.Coefficient = areaCoefficient
			area = derived
		}
		if err := s.SetSubjectArea(ctx, args[0], area, subjectUser); err != nil {
			return eris.Wrapf(err, "set area for subject %s", args[0])
		}

		zap.L().Info("subject area set",
			zap.String("subject_id", args[0]),
			zap.Float64("built", area.Built),
			zap.Float64("balcony", area.Balcony),
		)
		return nil
	},
}

var subjectValueCmd = &cobra.Command{
	Use:   "value [subject-id]",
	Short: "Compute the subject's valuation from included comparables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer s.Close()

		area, err := s.GetSubjectArea(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "load area for subject %s", args[0])
		}
		comparables, err := s.ListComparables(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "list comparables")
		}

		if area.Coefficient == 0 {
			area.Coefficient = cfg.Valuation.EquivalenceCoefficient
		}
		result, err := valuation.ComputeValuation(args[0], comparables, *area, valuation.Options{
			VATIncluded: cfg.Valuation.VATIncluded,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	subjectCreateCmd.Flags().StringVar(&subjectAddress, "address", "", "street address")
	subjectCreateCmd.Flags().StringVar(&subjectCity, "city", "", "city")
	_ = subjectCreateCmd.MarkFlagRequired("address")

	subjectAreaCmd.Flags().Float64Var(&areaBuilt, "built", 0, "built area in sqm")
	subjectAreaCmd.Flags().Float64Var(&areaBalcony, "balcony", 0, "balcony area in sqm")
	subjectAreaCmd.Flags().Float64Var(&areaCoefficient, "coefficient", 0, "balcony equivalence coefficient (0 uses the configured default)")
	subjectAreaCmd.Flags().BoolVar(&areaFromLatest, "from-latest", false, "derive areas from the active land registry extraction")

	subjectCmd.PersistentFlags().StringVar(&subjectUser, "user", "cli", "user recorded in the audit trail")

	subjectCmd.AddCommand(subjectCreateCmd, subjectAreaCmd, subjectValueCmd)
	rootCmd.AddCommand(subjectCmd)
}
