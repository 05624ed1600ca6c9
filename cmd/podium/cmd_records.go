package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/discipline"
	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

// entry is the textual form of a candidate, shared by flags and import
// files.
type entry struct {
	Discipline  string `yaml:"discipline"`
	Kind        string `yaml:"kind"`
	Athlete     string `yaml:"athlete"`
	Location    string `yaml:"location"`
	Date        string `yaml:"date"`
	Gender      string `yaml:"gender"`
	Category    string `yaml:"category"`
	Performance string `yaml:"performance"`
}

// candidate resolves e. The kind comes from the entry when given, otherwise
// from the discipline catalog.
func (e entry) candidate() (model.Candidate, error) {
	var kind performance.Kind
	if e.Kind != "" {
		k, err := performance.ParseKind(e.Kind)
		if err != nil {
			return model.Candidate{}, err
		}
		kind = k
	} else {
		d, err := discipline.Lookup(e.Discipline)
		if err != nil {
			return model.Candidate{}, fmt.Errorf("%w (pass a kind for custom disciplines)", err)
		}
		kind = d.Kind
	}

	gender, err := model.ParseGender(e.Gender)
	if err != nil {
		return model.Candidate{}, err
	}
	category, err := model.ParseAgeCategory(e.Category)
	if err != nil {
		return model.Candidate{}, err
	}
	date, err := model.ParseDate(e.Date)
	if err != nil {
		return model.Candidate{}, err
	}

	return model.Candidate{
		DisciplineID: strings.ToLower(strings.TrimSpace(e.Discipline)),
		Kind:         kind,
		AthleteID:    e.Athlete,
		LocationID:   e.Location,
		AchievedOn:   date,
		Gender:       gender,
		Category:     category,
		Performance:  e.Performance,
	}, nil
}

func newSubmitCmd(c *cli) *cobra.Command {
	var e entry
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a performance as the new record of its event",
		Example: `  podium submit --discipline 100m --gender men --category senior \
    --athlete bolt --location berlin --date 2009-08-16 --performance 9.58`,
		Args: cobra.NoArgs,
		RunE: c.withService(func(cmd *cobra.Command, _ []string, svc *app.Service) error {
			cand, err := e.candidate()
			if err != nil {
				return err
			}
			rec, err := svc.Submit(cmd.Context(), cand)
			if err != nil {
				if rej, ok := history.IsRejected(err); ok {
					return fmt.Errorf("%s: %w", history.OutcomeRejected, rej)
				}
				return err
			}
			return c.writeRecord(cmd.OutOrStdout(), rec)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&e.Discipline, "discipline", "", "discipline id, e.g. 100m or long-jump")
	f.StringVar(&e.Kind, "kind", "", "run, jump or throw (defaults to the catalog kind)")
	f.StringVar(&e.Athlete, "athlete", "", "athlete id")
	f.StringVar(&e.Location, "location", "", "location id")
	f.StringVar(&e.Date, "date", "", "achieved on, YYYY-MM-DD")
	f.StringVar(&e.Gender, "gender", "", "men or women")
	f.StringVar(&e.Category, "category", model.Senior.String(), "u18, u20, u23, senior or master")
	f.StringVar(&e.Performance, "performance", "", "time (9.58, 3:26.00, 2:01:39) or distance in metres (8.95)")
	for _, name := range []string{"discipline", "athlete", "location", "date", "gender", "performance"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid record id %q: %w", arg, err)
	}
	return id, nil
}

func newHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history <record-id>",
		Short: "Show a record and every record it superseded, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: c.withService(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			chain, err := svc.History().HistoryOf(cmd.Context(), id)
			if err != nil {
				var herr *history.HistoryError
				if errors.As(err, &herr) {
					return fmt.Errorf("chain of %s is corrupt after %d records: %w", id, herr.Visited, err)
				}
				return err
			}
			return c.writeRecords(cmd.OutOrStdout(), chain)
		}),
	}
}

func newSuccessorsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "successors <record-id>",
		Short: "Show the records that superseded a record",
		Args:  cobra.ExactArgs(1),
		RunE: c.withService(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			next, err := svc.History().SuccessorsOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.writeRecords(cmd.OutOrStdout(), next)
		}),
	}
}

func newProgressionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "progression <discipline/gender/category>",
		Short:   "Show the record progression of an event, current record first",
		Example: "  podium progression 100m/men/senior",
		Args:    cobra.ExactArgs(1),
		RunE: c.withService(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			key, err := model.ParseRecordKey(args[0])
			if err != nil {
				return err
			}
			chain, err := svc.History().Progression(cmd.Context(), key)
			if err != nil {
				return err
			}
			return c.writeRecords(cmd.OutOrStdout(), chain)
		}),
	}
}

func newCurrentCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "current [discipline/gender/category]",
		Short: "Show the current record of one event, or of every event",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.withService(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				recs, err := svc.History().CurrentRecords(ctx)
				if err != nil {
					return err
				}
				return c.writeRecords(cmd.OutOrStdout(), recs)
			}

			key, err := model.ParseRecordKey(args[0])
			if err != nil {
				return err
			}
			rec, err := svc.History().Current(ctx, key)
			if err != nil {
				return err
			}
			return c.writeRecord(cmd.OutOrStdout(), rec)
		}),
	}
}
