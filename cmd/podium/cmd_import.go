package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/podium/internal/adapters/mq/queue"
	app "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

// importFile is the YAML layout read by the import command.
type importFile struct {
	Records []entry `yaml:"records"`
}

// importLine is the reported outcome of one entry.
type importLine struct {
	Line    int           `json:"line"`
	Outcome string        `json:"outcome"`
	Error   string        `json:"error,omitempty"`
	Record  *model.Record `json:"record,omitempty"`
}

func readImportFile(path string) ([]entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f importFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Records, nil
}

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Submit a batch of performances in file order",
		Long: `import reads a YAML file with a "records" list and submits every entry
through the ingest workers. Entries of the same event are applied in file
order, so a chronological file rebuilds the progression.`,
		Args: cobra.ExactArgs(1),
		RunE: c.withService(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			ctx := cmd.Context()
			entries, err := readImportFile(args[0])
			if err != nil {
				return err
			}

			lines := make([]importLine, len(entries))
			var (
				candidates []model.Candidate
				index      []int
			)
			for i, e := range entries {
				lines[i].Line = i + 1
				cand, err := e.candidate()
				if err != nil {
					lines[i].Outcome = history.OutcomeInvalidInput.String()
					lines[i].Error = err.Error()
					continue
				}
				candidates = append(candidates, cand)
				index = append(index, i)
			}

			results, err := svc.SubmitBatch(ctx, candidates)
			if err != nil {
				return err
			}

			counts := map[history.Outcome]int{}
			for _, l := range lines {
				if l.Outcome != "" {
					counts[history.OutcomeInvalidInput]++
				}
			}
			for j, res := range results {
				fillLine(&lines[index[j]], res)
				counts[history.Classify(res.Err)]++
			}

			c.log.Info(ctx, "import finished",
				logger.String("file", args[0]),
				logger.Int("entries", len(entries)),
				logger.Int("accepted", counts[history.OutcomeAccepted]),
				logger.Int("rejected", counts[history.OutcomeRejected]),
				logger.Int("invalid", counts[history.OutcomeInvalidInput]),
				logger.Int("failed", counts[history.OutcomeInternal]))

			if err := c.writeImport(cmd.OutOrStdout(), lines, counts); err != nil {
				return err
			}
			if n := counts[history.OutcomeInternal]; n > 0 {
				return fmt.Errorf("%d entries failed", n)
			}
			return nil
		}),
	}
}

func fillLine(l *importLine, res queue.Result) {
	l.Outcome = history.Classify(res.Err).String()
	if res.Err != nil {
		l.Error = res.Err.Error()
		return
	}
	rec := res.Record
	l.Record = &rec
}

func (c *cli) writeImport(w io.Writer, lines []importLine, counts map[history.Outcome]int) error {
	if c.output == outputJSON {
		return writeJSON(w, lines)
	}

	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		detail := l.Error
		if l.Record != nil {
			detail = fmt.Sprintf("%s %s by %s (%s)", keyLabel(l.Record.Key()),
				display(l.Record.DisciplineID, l.Record.Performance), l.Record.AthleteID, l.Record.ID)
		}
		rows = append(rows, []string{strconv.Itoa(l.Line), l.Outcome, detail})
	}
	if err := writeTable(w, []string{"LINE", "OUTCOME", "DETAIL"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "accepted=%d rejected=%d invalid=%d failed=%d\n",
		counts[history.OutcomeAccepted], counts[history.OutcomeRejected],
		counts[history.OutcomeInvalidInput], counts[history.OutcomeInternal])
	return err
}
