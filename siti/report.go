package siti

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Output formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var csvHeader = []string{"input_file", "n", "si", "ti"}

// WriteJSON writes r as indented JSON
func WriteJSON(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per frame: input file basename, 1-based frame
// number, SI and TI rounded to 3 decimals. TI is empty for the first frame.
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	name := ""
	if r.InputFile != "" {
		name = filepath.Base(r.InputFile)
	}
	for i, si := range r.SI {
		ti := ""
		if v, ok := r.TIAt(i); ok {
			ti = formatRounded(v)
		}
		if err := cw.Write([]string{name, strconv.Itoa(i + 1), formatRounded(si), ti}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Write writes r in the named format
func Write(w io.Writer, r *Result, format string) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, r)
	case FormatCSV:
		return WriteCSV(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func formatRounded(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

// ReadResultJSON decodes a result document. The embedded settings are not
// validated; use config.ParseSnapshot to reuse them for a new run.
func ReadResultJSON(r io.Reader) (*Result, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return &res, nil
}

// LoadResult reads a result JSON file
func LoadResult(path string) (*Result, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadResultJSON(f)
}

// JSONToCSV converts a result JSON document to the CSV layout
func JSONToCSV(in io.Reader, out io.Writer) error {
	res, err := ReadResultJSON(in)
	if err != nil {
		return err
	}
	return WriteCSV(out, res)
}
