// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package frame reads tabular CSV uploads. A DCRM test export starts with a
// key/value preamble followed by the sample table; the table header is
// found by a marker column name.
package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// DCRMHeaderMarker names a column present only in the header of a DCRM
// sample table.
const DCRMHeaderMarker = "Coil Current C1 (A)"

// ErrNoHeader is returned when a required header marker is not found.
var ErrNoHeader = errors.New("data header not found")

// Options controls how Read locates the header.
type Options struct {
	// HeaderMarker, when set, selects the first record containing a cell
	// with this text as the header. Records above it form the preamble.
	HeaderMarker string

	// MarkerOptional falls back to the first record when the marker is
	// not found instead of failing with ErrNoHeader.
	MarkerOptional bool
}

// Frame is a parsed CSV table. Records are padded or truncated to the
// header width.
type Frame struct {
	Columns []string
	Records [][]string

	// Preamble holds key/value pairs read from lines above the header.
	Preamble map[string]string
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, opts Options) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, opts)
}

// Read parses r as CSV.
func Read(r io.Reader, opts Options) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading CSV: no header row")
	}

	header := 0
	if opts.HeaderMarker != "" {
		header = findMarker(records, opts.HeaderMarker)
		if header < 0 {
			if !opts.MarkerOptional {
				return nil, fmt.Errorf("%w: no column %q", ErrNoHeader, opts.HeaderMarker)
			}
			header = 0
		}
	}

	f := &Frame{
		Columns:  uniqueColumns(records[header]),
		Preamble: preamble(records[:header]),
	}
	width := len(f.Columns)
	for _, rec := range records[header+1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		f.Records = append(f.Records, row)
	}
	return f, nil
}

// Len returns the number of data records.
func (f *Frame) Len() int { return len(f.Records) }

// Head returns a frame holding at most the first n records.
func (f *Frame) Head(n int) *Frame {
	if n < 0 || n >= len(f.Records) {
		return f
	}
	return &Frame{Columns: f.Columns, Records: f.Records[:n], Preamble: f.Preamble}
}

// Rows converts the records into RawRows. Each column's type is inferred
// from all its non-empty cells: numeric when every cell parses as a
// float, boolean when every cell is true/false, string otherwise. Empty
// cells become nil.
func (f *Frame) Rows() []types.RawRow {
	kinds := make([]columnKind, len(f.Columns))
	for c := range f.Columns {
		kinds[c] = f.inferKind(c)
	}

	rows := make([]types.RawRow, len(f.Records))
	for i, rec := range f.Records {
		var row types.RawRow
		for c, name := range f.Columns {
			row.Set(name, convert(rec[c], kinds[c]))
		}
		rows[i] = row
	}
	return rows
}

// Waveform parses every cell as a float. Cells that do not parse are NaN.
func (f *Frame) Waveform() types.Waveform {
	w := types.Waveform{
		Columns: append([]string(nil), f.Columns...),
		Rows:    make([][]float64, len(f.Records)),
	}
	for i, rec := range f.Records {
		row := make([]float64, len(rec))
		for c, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				v = math.NaN()
			}
			row[c] = v
		}
		w.Rows[i] = row
	}
	return w
}

type columnKind int

const (
	kindString columnKind = iota
	kindFloat
	kindBool
)

func (f *Frame) inferKind(c int) columnKind {
	numeric, boolean, seen := true, true, false
	for _, rec := range f.Records {
		cell := rec[c]
		if cell == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			numeric = false
		}
		if _, ok := parseBool(cell); !ok {
			boolean = false
		}
		if !numeric && !boolean {
			return kindString
		}
	}
	switch {
	case !seen:
		return kindFloat
	case numeric:
		return kindFloat
	case boolean:
		return kindBool
	}
	return kindString
}

func convert(cell string, kind columnKind) any {
	if cell == "" {
		return nil
	}
	switch kind {
	case kindFloat:
		v, _ := strconv.ParseFloat(cell, 64)
		return v
	case kindBool:
		v, _ := parseBool(cell)
		return v
	}
	return cell
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func findMarker(records [][]string, marker string) int {
	for i, rec := range records {
		for _, cell := range rec {
			if strings.Contains(cell, marker) {
				return i
			}
		}
	}
	return -1
}

// uniqueColumns trims names and suffixes repeats with ".1", ".2", ...
// Blank names become "Unnamed: <i>".
func uniqueColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// preamble pairs up non-empty cells of each line as key, value.
func preamble(records [][]string) map[string]string {
	out := map[string]string{}
	for _, rec := range records {
		var parts []string
		for _, cell := range rec {
			if s := strings.TrimSpace(cell); s != "" {
				parts = append(parts, s)
			}
		}
		for j := 0; j+1 < len(parts); j += 2 {
			if !strings.Contains(parts[j], ":") {
				out[parts[j]] = parts[j+1]
			}
		}
	}
	return out
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
