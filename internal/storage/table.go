package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	ErrMissingColumn = errors.New("storage: missing column")
	ErrMalformed     = errors.New("storage: malformed table")
)

// Table is a column-named numeric table, the on-disk shape of power spectra,
// tabulated backgrounds and exported results.
type Table struct {
	Columns []string
	Rows    [][]float64
}

func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

func (t *Table) Len() int { return len(t.Rows) }

// Append adds a row. It panics if the row width does not match the header,
// which is always a programming error.
func (t *Table) Append(values ...float64) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("storage: row has %d values, table has %d columns", len(values), len(t.Columns)))
	}
	t.Rows = append(t.Rows, values)
}

func (t *Table) index(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func (t *Table) Has(name string) bool { return t.index(name) >= 0 }

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	idx := t.index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrMissingColumn, name, strings.Join(t.Columns, ", "))
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// ReadTable parses a CSV table. The first non-comment record is the header;
// lines starting with '#' are ignored.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d column %q: %v", ErrMalformed, line, t.Columns[j], err)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', 10, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteTableFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTable(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
