package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// ReadCSV reads a header row followed by records. meta fixes the kind and
// level order of the variables it names; the remaining columns are inferred:
// continuous when every non-missing cell parses as a number, nominal with
// sorted levels otherwise. Empty cells, "NA" and "?" are missing.
func ReadCSV(r io.Reader, meta *Metadata) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading CSV header")
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading CSV body")
	}

	vars := make([]Variable, len(header))
	for c, name := range header {
		name = strings.TrimSpace(name)
		if v, ok := meta.lookup(name); ok {
			vars[c] = v
			continue
		}
		vars[c] = inferVariable(name, records, c)
	}
	d, err := New(vars...)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(vars))
	for l, rec := range records {
		if len(rec) != len(vars) {
			return nil, errors.Newf("line %d: expected %d fields, got %d", l+2, len(vars), len(rec))
		}
		for c, cell := range rec {
			x, err := parseCell(vars[c], cell)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", l+2)
			}
			values[c] = x
		}
		if err := d.AppendValues(values...); err != nil {
			return nil, errors.Wrapf(err, "line %d", l+2)
		}
	}
	return d, nil
}

func inferVariable(name string, records [][]string, c int) Variable {
	levels := map[string]bool{}
	numeric := true
	for _, rec := range records {
		if c >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[c])
		if isMissing(cell) {
			continue
		}
		levels[cell] = true
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			numeric = false
		}
	}
	if numeric {
		return NewContinuous(name)
	}
	names := make([]string, 0, len(levels))
	for l := range levels {
		names = append(names, l)
	}
	sort.Strings(names)
	return NewNominal(name, names...)
}

// ReadCSVFile opens path and reads it with ReadCSV. An empty path reads
// standard input.
func ReadCSVFile(path string, meta *Metadata) (*Dataset, error) {
	f := os.Stdin
	if path != "" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		defer f.Close()
	}
	d, err := ReadCSV(f, meta)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing CSV file %s", path)
	}
	return d, nil
}

// WriteCSV writes the dataset with a header row, followed by the extra
// columns given in extra (one value per row, in header order of extraNames).
func WriteCSV(w io.Writer, d *Dataset, extraNames []string, extra [][]string) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(d.vars)+len(extraNames))
	for _, v := range d.vars {
		header = append(header, v.Name)
	}
	header = append(header, extraNames...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing CSV header")
	}
	rec := make([]string, len(header))
	for r := 0; r < d.Len(); r++ {
		for c, v := range d.vars {
			rec[c] = v.Format(d.cols[c][r])
		}
		for e := range extraNames {
			rec[len(d.vars)+e] = extra[e][r]
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "writing row %d", r)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing CSV")
}
