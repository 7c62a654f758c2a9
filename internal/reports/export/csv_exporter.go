package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVExporter exports data to CSV format
type CSVExporter struct {
	writer        *csv.Writer
	options       CSVOptions
	headerWritten bool
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter       rune   `json:"delimiter"`
	UseCRLF         bool   `json:"use_crlf"`
	IncludeHeader   bool   `json:"include_header"`
	DateFormat      string `json:"date_format"`
	TimestampFormat string `json:"timestamp_format"`
	NumberFormat    string `json:"number_format"` // e.g. "%.2f"
	NullValue       string `json:"null_value"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		IncludeHeader:   true,
		DateFormat:      "2006-01-02",
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		NumberFormat:    "%.2f",
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	writer.Comma = options.Delimiter
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		writer:  writer,
		options: options,
	}
}

// WriteHeader writes the CSV header row
func (e *CSVExporter) WriteHeader(columns []string) error {
	if !e.options.IncludeHeader {
		return nil
	}

	if err := e.writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	e.headerWritten = true
	return nil
}

// WriteRow writes a single row of data
func (e *CSVExporter) WriteRow(row ...interface{}) error {
	record := make([]string, len(row))
	for i, val := range row {
		record[i] = e.formatValue(val)
	}

	if err := e.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// WriteMapRows writes rows from a slice of maps in column order
func (e *CSVExporter) WriteMapRows(rows []map[string]interface{}, columns []string) error {
	if !e.headerWritten && e.options.IncludeHeader {
		if err := e.WriteHeader(columns); err != nil {
			return err
		}
	}

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			val, ok := row[col]
			if !ok {
				record[i] = e.options.NullValue
			} else {
				record[i] = e.formatValue(val)
			}
		}

		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

// formatValue formats a value for CSV output
func (e *CSVExporter) formatValue(val interface{}) string {
	if val == nil {
		return e.options.NullValue
	}

	switch v := val.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if e.options.NumberFormat != "" {
			return fmt.Sprintf(e.options.NumberFormat, v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *int:
		if v == nil {
			return e.options.NullValue
		}
		return strconv.Itoa(*v)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.IsZero() {
			return e.options.NullValue
		}
		if v.Hour() != 0 || v.Minute() != 0 || v.Second() != 0 {
			return v.Format(e.options.TimestampFormat)
		}
		return v.Format(e.options.DateFormat)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// =====================================================
// Emission reports
// =====================================================

// SourceColumns are the columns of the sources table
var SourceColumns = []string{"type", "emission", "share"}

// WriteSourcesCSV writes one row per emission source
func WriteSourcesCSV(w io.Writer, report *EmissionReport) error {
	e := NewCSVExporter(w, DefaultCSVOptions())
	if err := e.WriteMapRows(report.sourceRows(), SourceColumns); err != nil {
		return err
	}
	return e.Flush()
}

// WriteReportCSV writes the sources, forecast and analytics sections one
// after another, separated by a blank line
func WriteReportCSV(w io.Writer, report *EmissionReport) error {
	e := NewCSVExporter(w, DefaultCSVOptions())

	if err := e.WriteRow("company", report.CompanyName); err != nil {
		return err
	}
	if err := e.WriteRow("sector", report.Sector); err != nil {
		return err
	}
	if err := e.WriteRow("generated_at", report.GeneratedAt); err != nil {
		return err
	}

	section := func(columns []string, rows []map[string]interface{}) error {
		if err := e.WriteRow(); err != nil {
			return err
		}
		e.headerWritten = false
		return e.WriteMapRows(rows, columns)
	}

	if err := section(SourceColumns, report.sourceRows()); err != nil {
		return err
	}
	if err := section([]string{"year", "emission"}, report.forecastRows(report.Forecast)); err != nil {
		return err
	}

	analytics := []map[string]interface{}{
		{"metric": "total", "value": report.Total},
		{"metric": "average_annual_change", "value": report.Analytics.AverageAnnualChange},
		{"metric": "trend", "value": report.Analytics.Trend},
		{"metric": "spikes", "value": len(report.Analytics.Spikes)},
		{"metric": "target", "value": report.Target},
		{"metric": "target_year", "value": report.TargetYear},
	}
	if err := section([]string{"metric", "value"}, analytics); err != nil {
		return err
	}

	return e.Flush()
}

// WriteComplianceCSV writes the compliance table for standard
func WriteComplianceCSV(w io.Writer, report *EmissionReport, standard Standard) error {
	e := NewCSVExporter(w, DefaultCSVOptions())
	if err := e.WriteHeader([]string{"standard", "company", "sector", "size", "type", "emission"}); err != nil {
		return err
	}
	for _, s := range report.Sources {
		if err := e.WriteRow(string(standard), report.CompanyName, report.Sector, report.Size, s.Type, s.Emission); err != nil {
			return err
		}
	}
	return e.Flush()
}
