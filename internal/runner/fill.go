package runner

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/modfin/henry/slicez"
	"github.com/modfin/vetter/internal/generate"
)

type FillConfig struct {
	// Name prefixes the query id of every row.
	Name        string
	Delimiter   string
	WithHeaders bool
	BestOf      int
	Options     generate.Options
}

// Fill reads one query per row, runs best-of-N for it and writes the row back
// with the selected answer, its overall score and its status appended.
func (r *Runner) Fill(ctx context.Context, in io.Reader, out io.Writer, cfg FillConfig) error {
	delimiter := cfg.Delimiter
	if len(delimiter) == 0 {
		delimiter = "\t"
	}

	csvin := csv.NewReader(in)
	csvin.LazyQuotes = true
	csvin.FieldsPerRecord = -1
	switch delimiter {
	case "\\t":
		csvin.Comma = '\t'
	default:
		csvin.Comma = rune(delimiter[0])
	}

	csvout := csv.NewWriter(out)
	csvout.Comma = csvin.Comma
	defer csvout.Flush()

	var headers []string
	getName := func(col int) string {
		if len(headers) > col {
			return headers[col]
		}
		return fmt.Sprintf("col_%d", col)
	}

	var row int
	for {
		start := time.Now()

		row++
		record, err := csvin.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", row, err)
		}
		if row == 1 && cfg.WithHeaders {
			headers = append([]string{}, record...)
			err = csvout.Write(append(record, "answer", "overall_score", "status"))
			if err != nil {
				return err
			}
			continue
		}

		query := record[0]
		if len(record) > 1 {
			var col int
			cols := slicez.Map(record, func(s string) string {
				name := getName(col)
				col += 1
				return fmt.Sprintf("<%s>\n  %s\n</%s>", name, s, name)
			})
			query = strings.Join(cols, "\n")
		}

		best, err := r.RunBest(ctx, generate.Request{
			QueryID: fmt.Sprintf("%s:%d", cfg.Name, row),
			Query:   query,
			Options: cfg.Options,
		}, cfg.BestOf)
		if err != nil {
			return fmt.Errorf("failed on row %d: %w", row, err)
		}

		err = csvout.Write(append(record, best.Content, fmt.Sprintf("%.2f", best.OverallScore), string(best.Status)))
		if err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		csvout.Flush()

		r.logger.Debug("Fill", "row", row, "overall", best.OverallScore, "status", best.Status, "took", time.Since(start))
	}

	return csvout.Error()
}
