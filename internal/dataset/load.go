package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"

	"userstats/internal/etlerr"
	"userstats/internal/parser/csv"
	"userstats/internal/parser/html"
	"userstats/internal/storage"
)

// Load parses one input into a Table.
//
// The first record is the header. Every data record must have as many fields
// as the header; a record that does not is a parse error naming its line.
// Blank lines are skipped. Column types are inferred over all rows and cells
// are converted to typed values.
//
// Edge cases:
//   - A stream that fails mid-read is a missing-input error; cancellation is
//     returned unwrapped.
//   - A missing required or key column is a parse error.
//   - A Numeric column that holds non-numeric text is a parse error.
//   - An input with a header and no rows loads as an empty table.
//   - Duplicate keys are kept; Lookup returns the first.
func Load(ctx context.Context, spec Spec, r io.Reader, format Format) (*Table, error) {
	op := "load " + spec.Name

	header, records, lines, err := readRecords(ctx, r, format)
	if err != nil {
		return nil, readError(ctx, op, err)
	}
	if len(header) == 0 {
		return nil, etlerr.Parsef(op, "no header row")
	}

	if err := checkHeader(spec, header); err != nil {
		return nil, etlerr.Parse(op, err)
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, etlerr.Parsef(op, "line %d: expected %d fields, got %d", lines[i], len(header), len(rec))
		}
	}

	types := inferTypes(len(header), records)
	if spec.TextKey {
		for i, h := range header {
			if h == spec.Key {
				types[i] = storage.TypeText
			}
		}
	}

	t := &Table{
		Name:    spec.Name,
		Columns: make([]Column, len(header)),
		Rows:    make([][]any, len(records)),
		Key:     spec.Key,
	}
	for i, h := range header {
		t.Columns[i] = Column{Name: h, Type: types[i]}
	}
	for _, name := range spec.Numeric {
		c := t.Columns[t.ColumnIndex(name)]
		if c.Type == storage.TypeInteger || c.Type == storage.TypeFloat {
			continue
		}
		// An all-empty column infers as text but has nothing non-numeric in it.
		if hasValues(records, t.ColumnIndex(name)) {
			return nil, etlerr.Parsef(op, "column %s: expected numeric values", name)
		}
	}

	for i, rec := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make([]any, len(rec))
		for j, raw := range rec {
			v, err := convert(raw, types[j])
			if err != nil {
				return nil, etlerr.Parsef(op, "line %d: column %s: %v", lines[i], header[j], err)
			}
			row[j] = v
		}
		t.Rows[i] = row
	}

	if t.Key != "" {
		t.buildIndex()
	}
	return t, nil
}

func readRecords(ctx context.Context, r io.Reader, format Format) (header []string, records [][]string, lines []int, err error) {
	if format == FormatHTML {
		header, records, err = html.ReadTable(r)
		if err != nil {
			return nil, nil, nil, err
		}
		header = csv.NormalizeHeader(header)
		lines = make([]int, len(records))
		for i := range lines {
			// Row numbers within the table, header being row 1.
			lines[i] = i + 2
		}
		return header, records, lines, nil
	}

	cr := csv.NewReader(r)
	header, err = cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	header = csv.NormalizeHeader(header)

	for {
		if len(records)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return header, records, lines, nil
		}
		if err != nil {
			return nil, nil, nil, err
		}
		records = append(records, rec)
		lines = append(lines, cr.Line())
	}
}

// readError classifies a failure from readRecords. Only malformed content is
// a parse error.
func readError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) || errors.Is(err, html.ErrNoTable) {
		return etlerr.Parse(op, err)
	}
	return etlerr.MissingInput(op, fmt.Errorf("read: %w", err))
}

func checkHeader(spec Spec, header []string) error {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
	}
	need := spec.Required
	if spec.Key != "" {
		need = append([]string{spec.Key}, need...)
	}
	for _, c := range need {
		if !seen[c] {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}

func hasValues(records [][]string, col int) bool {
	for _, r := range records {
		if v, _ := convert(r[col], storage.TypeText); v != nil {
			return true
		}
	}
	return false
}
