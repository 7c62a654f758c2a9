package companies

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// ParseSourcesCSV reads a CSV with "type" and "emission" header columns.
// Column order is free and extra columns are ignored.
func ParseSourcesCSV(r io.Reader) ([]emissions.EmissionSource, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty CSV", emissions.ErrMissingData)
		}
		return nil, fmt.Errorf("%w: %v", emissions.ErrInvalidInput, err)
	}

	typeCol, emissionCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "type":
			typeCol = i
		case "emission":
			emissionCol = i
		}
	}
	if typeCol < 0 || emissionCol < 0 {
		return nil, fmt.Errorf("%w: CSV must have 'type' and 'emission' columns", emissions.ErrMissingData)
	}

	var records []emissions.SourceRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", emissions.ErrInvalidInput, err)
		}

		record := emissions.SourceRecord{}
		if typeCol < len(row) {
			record.Type = strings.TrimSpace(row[typeCol])
		}
		if emissionCol < len(row) && strings.TrimSpace(row[emissionCol]) != "" {
			value, err := strconv.ParseFloat(strings.TrimSpace(row[emissionCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: emission is not a number", emissions.ErrInvalidInput, line)
			}
			record.Emission = &value
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: CSV has no rows", emissions.ErrMissingData)
	}
	return emissions.ValidateRecords(records)
}
