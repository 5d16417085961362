package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rsavell/place_scout/internal/model"
)

// Header text and column order are a contract: downstream consumers parse
// these files by name.
var (
	placeHeader = []string{"Place Name", "Address", "Phone", "Website"}
	countHeader = []string{"Place Name", "Location", "Count"}
)

// WriteCSV serializes a result table. The header and row shape depend on the
// table's mode.
func WriteCSV(w io.Writer, table *model.Table) error {
	cw := csv.NewWriter(w)

	switch table.Mode {
	case model.ModeSpecificLocation:
		if err := cw.Write(placeHeader); err != nil {
			return err
		}
		for _, p := range table.Places {
			if err := cw.Write([]string{p.Name, p.Address, p.Phone, p.Website}); err != nil {
				return err
			}
		}

	case model.ModeSpecificCount:
		if err := cw.Write(countHeader); err != nil {
			return err
		}
		for _, row := range table.Counts {
			if err := cw.Write([]string{row.Query, row.Location, strconv.Itoa(row.Count)}); err != nil {
				return err
			}
		}

	case model.ModeStateCount:
		header := append([]string{"Place Name"}, table.StateCodes...)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, row := range table.StateRows {
			rec := make([]string, 0, len(header))
			rec = append(rec, row.Query)
			for _, state := range table.StateCodes {
				rec = append(rec, strconv.Itoa(row.Counts[state]))
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown table mode %q", table.Mode)
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes a result table to path, creating or truncating the file.
func WriteFile(path string, table *model.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating result file: %w", err)
	}
	if err := WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
