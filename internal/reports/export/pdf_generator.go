package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator generates PDF reports
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	options PDFOptions
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"`   // A4, Letter, Legal
	Orientation    string     `json:"orientation"` // portrait, landscape
	DateFormat     string     `json:"date_format"`
	IncludePageNum bool       `json:"include_page_num"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateRows  bool       `json:"alternate_rows"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	HeaderFontSize float64    `json:"header_font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "portrait",
		DateFormat:     "2006-01-02",
		IncludePageNum: true,
		HeaderColor:    PDFColor{R: 46, G: 125, B: 50},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       10,
		HeaderFontSize: 11,
		TitleFontSize:  16,
		Margins: PDFMargins{
			Left:   15,
			Right:  15,
			Top:    20,
			Bottom: 20,
		},
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)

	g := &PDFGenerator{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		options: options,
	}
	g.setFooter()
	return g
}

// =====================================================
// Emission reports
// =====================================================

// EmissionReport renders the company header, the sources table, the first
// forecast years, the recommendations and a summary
func (g *PDFGenerator) EmissionReport(report *EmissionReport) error {
	g.pdf.AddPage()
	g.addTitle("CO2 Emission Report: " + report.CompanyName)
	g.addSubtitle(fmt.Sprintf("Sector: %s | Size: %s", report.Sector, report.Size))
	g.addDate(report.GeneratedAt)
	g.pdf.Ln(6)

	g.addSectionTitle("Emission Sources")
	g.addTable(
		[]string{"Source Type", "Emission (t CO2e)", "Share (%)"},
		SourceColumns,
		report.sourceRows(),
	)

	preview := report.forecastPreview()
	if len(preview) > 0 {
		g.addSectionTitle(fmt.Sprintf("Forecast (first %d years)", len(preview)))
		g.addTable([]string{"Year", "Emission (t CO2e)"}, []string{"year", "emission"}, report.forecastRows(preview))
	}

	if len(report.Recommendations) > 0 {
		g.addSectionTitle("Recommendations")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		for _, rec := range report.Recommendations {
			g.pdf.MultiCell(0, 6, g.text("- "+rec.Message), "", "L", false)
		}
	}

	items := []summaryItem{
		{"Total emissions", fmt.Sprintf("%.2f t CO2e", report.Total)},
		{"Average annual change", fmt.Sprintf("%.2f t", report.Analytics.AverageAnnualChange)},
		{"Trend", report.Analytics.Trend},
		{"Target", fmt.Sprintf("%.2f t", report.Target)},
	}
	if report.TargetYear != nil {
		items = append(items, summaryItem{"Target year", fmt.Sprintf("%d", *report.TargetYear)})
	} else {
		items = append(items, summaryItem{"Target year", "not reached in forecast"})
	}
	if report.Benchmark != nil {
		items = append(items, summaryItem{"Sector position", report.Benchmark.Message})
	}
	g.addSummary("Summary", items)

	return g.pdf.Error()
}

// ComplianceReport renders the source inventory under a reporting standard
func (g *PDFGenerator) ComplianceReport(report *EmissionReport, standard Standard) error {
	g.pdf.AddPage()
	g.addTitle(fmt.Sprintf("%s Compliance Report: %s", standard, report.CompanyName))
	g.addSubtitle(fmt.Sprintf("Sector: %s | Size: %s", report.Sector, report.Size))
	g.addDate(report.GeneratedAt)
	g.pdf.Ln(6)

	g.addSectionTitle("Emission Sources")
	g.addTable(
		[]string{"Source Type", "Emission (t CO2e)", "Share (%)"},
		SourceColumns,
		report.sourceRows(),
	)

	g.addSummary("Inventory", []summaryItem{
		{"Standard", string(standard)},
		{"Reporting year", fmt.Sprintf("%d", report.GeneratedAt.Year())},
		{"Sources reported", fmt.Sprintf("%d", len(report.Sources))},
		{"Total emissions", fmt.Sprintf("%.2f t CO2e", report.Total)},
	})

	return g.pdf.Error()
}

// =====================================================
// Layout helpers
// =====================================================

type summaryItem struct {
	label string
	value string
}

// text converts UTF-8 to the core font code page
func (g *PDFGenerator) text(s string) string {
	return g.tr(s)
}

func (g *PDFGenerator) addTitle(title string) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.text(title), "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addSubtitle(subtitle string) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+2)
	g.pdf.SetTextColor(100, 100, 100)
	g.pdf.CellFormat(0, 8, g.text(subtitle), "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addDate(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	g.pdf.SetTextColor(128, 128, 128)
	g.pdf.CellFormat(0, 6, "Generated: "+at.Format(g.options.DateFormat), "", 1, "R", false, 0, "")
}

func (g *PDFGenerator) addSectionTitle(title string) {
	g.pdf.Ln(4)
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+2)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 8, g.text(title), "", 1, "L", false, 0, "")
}

// addTable draws a header row and the data rows in equal-width columns,
// repeating the header after a page break
func (g *PDFGenerator) addTable(labels []string, columns []string, rows []map[string]interface{}) {
	pageWidth, pageHeight := g.pdf.GetPageSize()
	width := (pageWidth - g.options.Margins.Left - g.options.Margins.Right) / float64(len(columns))

	header := func() {
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
		g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
		g.pdf.SetTextColor(255, 255, 255)
		for _, label := range labels {
			g.pdf.CellFormat(width, 8, g.text(label), "1", 0, "C", true, 0, "")
		}
		g.pdf.Ln(-1)
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.SetTextColor(0, 0, 0)
	}
	header()

	for i, row := range rows {
		if g.pdf.GetY()+7 > pageHeight-g.options.Margins.Bottom {
			g.pdf.AddPage()
			header()
		}

		if g.options.AlternateRows && i%2 == 1 {
			g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}
		for _, col := range columns {
			g.pdf.CellFormat(width, 7, g.text(g.formatValue(row[col])), "1", 0, "L", true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

func (g *PDFGenerator) addSummary(title string, items []summaryItem) {
	g.addSectionTitle(title)
	for _, item := range items {
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		g.pdf.CellFormat(60, 6, g.text(item.label+":"), "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.MultiCell(0, 6, g.text(item.value), "", "L", false)
	}
}

// formatValue formats a value for display
func (g *PDFGenerator) formatValue(val interface{}) string {
	if val == nil {
		return ""
	}

	switch v := val.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(g.options.DateFormat)
	case float64:
		return fmt.Sprintf("%.2f", v)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// setFooter sets up the page footer
func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		if !g.options.IncludePageNum {
			return
		}
		g.pdf.SetY(-15)
		g.pdf.SetFont(g.options.FontFamily, "", 8)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

// OutputToBytes returns the PDF as bytes
func (g *PDFGenerator) OutputToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
