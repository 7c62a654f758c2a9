package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	IncludeHeader bool              `json:"include_header"`
	FreezeHeader  bool              `json:"freeze_header"`
	AutoFilter    bool              `json:"auto_filter"`
	NumberFormat  string            `json:"number_format"`
	HeaderStyle   *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle     *ExcelStyleConfig `json:"data_style,omitempty"`
	AutoWidth     bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		IncludeHeader: true,
		FreezeHeader:  true,
		AutoFilter:    true,
		NumberFormat:  "#,##0.00",
		AutoWidth:     true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// MultiSheetExporter writes one table per sheet into a single workbook
type MultiSheetExporter struct {
	file    *excelize.File
	options ExcelOptions
	styles  map[*ExcelStyleConfig]int
	number  int
	started bool
}

// NewMultiSheetExporter creates a multi-sheet Excel exporter
func NewMultiSheetExporter(options ExcelOptions) *MultiSheetExporter {
	return &MultiSheetExporter{
		file:    excelize.NewFile(),
		options: options,
		styles:  make(map[*ExcelStyleConfig]int),
	}
}

// AddSheet adds a sheet with a header row and one row per map. The default
// sheet is replaced by the first sheet added.
func (e *MultiSheetExporter) AddSheet(name string, columns []string, labels []string, rows []map[string]interface{}) error {
	if _, err := e.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if !e.started {
		e.started = true
		if err := e.file.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
		if index, err := e.file.GetSheetIndex(name); err == nil {
			e.file.SetActiveSheet(index)
		}
	}

	startRow := 1
	if e.options.IncludeHeader {
		if err := e.writeHeader(name, labels); err != nil {
			return err
		}
		startRow = 2
	}

	dataStyle, err := e.style(e.options.DataStyle)
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}

	widths := make([]float64, len(columns))
	for i, label := range labels {
		widths[i] = estimateCellWidth(label)
	}

	for rowIdx, row := range rows {
		for colIdx, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, startRow+rowIdx)
			val := row[col]
			if err := e.file.SetCellValue(name, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}

			styleID := dataStyle
			if _, ok := val.(float64); ok && e.options.NumberFormat != "" {
				if styleID, err = e.numberStyle(); err != nil {
					return err
				}
			}
			if styleID > 0 {
				if err := e.file.SetCellStyle(name, cell, cell, styleID); err != nil {
					return fmt.Errorf("failed to style cell: %w", err)
				}
			}

			if w := estimateCellWidth(val); w > widths[colIdx] {
				widths[colIdx] = w
			}
		}
	}

	if e.options.AutoFilter && e.options.IncludeHeader && len(rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := e.file.AutoFilter(name, "A1:"+lastCol, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}

	if e.options.AutoWidth {
		for colIdx, width := range widths {
			colName, _ := excelize.ColumnNumberToName(colIdx + 1)
			width = min(max(width, 10), 60)
			if err := e.file.SetColWidth(name, colName, colName, width); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}
	return nil
}

func (e *MultiSheetExporter) writeHeader(sheet string, labels []string) error {
	headerStyle, err := e.style(e.options.HeaderStyle)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		if headerStyle > 0 {
			if err := e.file.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
				return err
			}
		}
	}

	if e.options.FreezeHeader {
		return e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// style creates each configured style once per workbook
func (e *MultiSheetExporter) style(config *ExcelStyleConfig) (int, error) {
	if config == nil {
		return 0, nil
	}
	if id, ok := e.styles[config]; ok {
		return id, nil
	}

	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}

	id, err := e.file.NewStyle(style)
	if err != nil {
		return 0, err
	}
	e.styles[config] = id
	return id, nil
}

func (e *MultiSheetExporter) numberStyle() (int, error) {
	if e.number > 0 {
		return e.number, nil
	}
	format := e.options.NumberFormat
	id, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0, fmt.Errorf("failed to create number style: %w", err)
	}
	e.number = id
	return id, nil
}

// WriteTo writes the workbook to w
func (e *MultiSheetExporter) WriteTo(w io.Writer) (int64, error) {
	return e.file.WriteTo(w)
}

// Close closes the workbook
func (e *MultiSheetExporter) Close() error {
	return e.file.Close()
}

func estimateCellWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	if f, ok := val.(float64); ok {
		val = fmt.Sprintf("%.2f", f)
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

// =====================================================
// Emission reports
// =====================================================

// WriteReportWorkbook writes a workbook with Sources, Forecast and
// Recommendations sheets
func WriteReportWorkbook(w io.Writer, report *EmissionReport) error {
	e := NewMultiSheetExporter(DefaultExcelOptions())
	defer e.Close()

	if err := e.AddSheet("Sources", SourceColumns,
		[]string{"Source Type", "Emission (t CO2e)", "Share (%)"}, report.sourceRows()); err != nil {
		return err
	}
	if err := e.AddSheet("Forecast", []string{"year", "emission"},
		[]string{"Year", "Emission (t CO2e)"}, report.forecastRows(report.Forecast)); err != nil {
		return err
	}
	if err := e.AddSheet("Recommendations", []string{"source", "tons_saved", "recommendation"},
		[]string{"Source Type", "Potential Savings (t)", "Recommendation"}, report.recommendationRows()); err != nil {
		return err
	}

	if _, err := e.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
