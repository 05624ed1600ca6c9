package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/podium/internal/domain/adjustment"
	"github.com/okian/podium/internal/domain/discipline"
	"github.com/okian/podium/internal/domain/format"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
	"github.com/okian/podium/pkg/metrics"
)

// resolveDiscipline returns the catalog entry of id. A kind overrides the
// catalog and admits disciplines outside it.
func resolveDiscipline(id, kind string) (discipline.Discipline, error) {
	if kind == "" {
		return discipline.Lookup(id)
	}
	k, err := performance.ParseKind(kind)
	if err != nil {
		return discipline.Discipline{}, err
	}
	d, err := discipline.Lookup(id)
	if err != nil || d.Kind != k {
		return discipline.Discipline{ID: id, Name: id, Kind: k}, nil
	}
	return d, nil
}

func newEstimateCmd(c *cli) *cobra.Command {
	var disciplineID, kind, gender string
	cmd := &cobra.Command{
		Use:     "estimate <senior-performance>",
		Short:   "Derive the equivalent of a Senior performance for every age category",
		Example: "  podium estimate --discipline 100m --gender women 10.49",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolveDiscipline(disciplineID, kind)
			if err != nil {
				return err
			}
			g, err := model.ParseGender(gender)
			if err != nil {
				return err
			}
			ref, err := performance.Parse(args[0], d.Kind)
			if err != nil {
				return err
			}
			eqs, err := adjustment.Estimate(ref, d.Kind, g)
			if err != nil {
				return err
			}
			metrics.RecordEstimate(len(eqs))

			if c.output == outputJSON {
				type row struct {
					Category    model.AgeCategory `json:"category"`
					Factor      float64           `json:"factor"`
					Performance performance.Value `json:"performance"`
					Display     string            `json:"display"`
				}
				rows := make([]row, len(eqs))
				for i, eq := range eqs {
					rows[i] = row{eq.Category, eq.Factor, eq.Value, format.Display(eq.Value, d.Kind, d.Profile)}
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}

			rows := make([][]string, 0, len(eqs))
			for _, eq := range eqs {
				rows = append(rows, []string{
					format.KeyLabel(model.RecordKey{DisciplineID: d.ID, Gender: g, Category: eq.Category}, d.Name),
					fmt.Sprintf("%.3f", eq.Factor), format.Display(eq.Value, d.Kind, d.Profile),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"CATEGORY", "FACTOR", "PERFORMANCE"}, rows)
		},
	}
	cmd.Flags().StringVar(&disciplineID, "discipline", "", "discipline id")
	cmd.Flags().StringVar(&kind, "kind", "", "run, jump or throw (defaults to the catalog kind)")
	cmd.Flags().StringVar(&gender, "gender", model.Men.String(), "men or women")
	_ = cmd.MarkFlagRequired("discipline")
	return cmd
}

func newFormatCmd(c *cli) *cobra.Command {
	var disciplineID, kind string
	cmd := &cobra.Command{
		Use:     "format <performance>...",
		Short:   "Parse performances and print their canonical and display forms",
		Example: "  podium format --discipline marathon 2:01:09 7299.5",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolveDiscipline(disciplineID, kind)
			if err != nil {
				return err
			}

			type row struct {
				Input     string `json:"input"`
				Canonical string `json:"canonical"`
				Display   string `json:"display"`
			}
			rows := make([]row, 0, len(args))
			for _, raw := range args {
				v, err := performance.Parse(raw, d.Kind)
				if err != nil {
					return err
				}
				rows = append(rows, row{raw, v.Canonical(), format.Display(v, d.Kind, d.Profile)})
			}

			if c.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			cells := make([][]string, len(rows))
			for i, r := range rows {
				cells[i] = []string{r.Input, r.Canonical, r.Display}
			}
			return writeTable(cmd.OutOrStdout(), []string{"INPUT", "CANONICAL", "DISPLAY"}, cells)
		},
	}
	cmd.Flags().StringVar(&disciplineID, "discipline", "", "discipline id")
	cmd.Flags().StringVar(&kind, "kind", "", "run, jump or throw (defaults to the catalog kind)")
	_ = cmd.MarkFlagRequired("discipline")
	return cmd
}

func newDisciplinesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disciplines",
		Short: "List the built-in disciplines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := discipline.All()
			if c.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			rows := make([][]string, 0, len(all))
			for _, d := range all {
				profile := "-"
				if d.Kind == performance.Run {
					profile = d.Profile.String()
				}
				rows = append(rows, []string{d.ID, d.Name, d.Kind.String(), profile})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "KIND", "PROFILE"}, rows)
		},
	}
}
