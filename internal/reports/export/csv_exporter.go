package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"carbon-scribe/verification-engine/internal/verification"
)

// RunColumns is the fixed column set of the run audit export
var RunColumns = []string{
	"run_id",
	"subject_id",
	"created_at",
	"status",
	"score",
	"quality_grade",
	"total_co2_kg",
	"net_co2_kg",
	"scope1_kg",
	"scope2_kg",
	"scope3_kg",
	"green_score",
	"data_quality",
	"greenwashing_risk",
	"eligible_credits",
	"carry_forward_t",
	"ccts_eligible",
	"cbam_compliant",
	"frameworks",
	"flags",
	"content_hash",
	"disclaimer",
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter       rune   `json:"delimiter"`
	UseCRLF         bool   `json:"use_crlf"`
	TimestampFormat string `json:"timestamp_format"`
	ListSeparator   string `json:"list_separator"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		TimestampFormat: time.RFC3339,
		ListSeparator:   ";",
	}
}

// CSVExporter writes verification runs as an audit CSV. Every row carries its run's
// disclaimer verbatim and the content hash it was stored with.
type CSVExporter struct {
	writer        *csv.Writer
	options       CSVOptions
	headerWritten bool
	rowCount      int
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	if options.Delimiter == 0 {
		options.Delimiter = ','
	}
	if options.TimestampFormat == "" {
		options.TimestampFormat = time.RFC3339
	}
	if options.ListSeparator == "" {
		options.ListSeparator = ";"
	}

	writer := csv.NewWriter(w)
	writer.Comma = options.Delimiter
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		writer:  writer,
		options: options,
	}
}

// WriteHeader writes the header row once
func (e *CSVExporter) WriteHeader() error {
	if e.headerWritten {
		return nil
	}
	if err := e.writer.Write(RunColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	e.headerWritten = true
	return nil
}

// WriteRun writes one run
func (e *CSVExporter) WriteRun(run verification.Run) error {
	if err := e.WriteHeader(); err != nil {
		return err
	}

	frameworks := make([]string, len(run.Frameworks))
	for i, f := range run.Frameworks {
		frameworks[i] = string(f)
	}
	flags := make([]string, len(run.Flags))
	for i, f := range run.Flags {
		flags[i] = string(f.Code)
	}

	record := []string{
		run.ID.String(),
		run.SubjectID,
		run.CreatedAt.UTC().Format(e.options.TimestampFormat),
		string(run.Status),
		formatFloat(run.Score),
		string(run.CreditEligibility.QualityGrade),
		formatFloat(run.TotalCo2Kg),
		formatFloat(run.NetCo2Kg),
		formatFloat(run.ScopeBreakdown.Scope1),
		formatFloat(run.ScopeBreakdown.Scope2),
		formatFloat(run.ScopeBreakdown.Scope3),
		formatFloat(run.GreenScore),
		string(run.DataQuality),
		string(run.GreenwashingRisk),
		strconv.FormatInt(run.CreditEligibility.EligibleCredits, 10),
		formatFloat(run.CreditEligibility.CarryForward),
		strconv.FormatBool(run.CCTSEligible),
		strconv.FormatBool(run.CBAMCompliant),
		strings.Join(frameworks, e.options.ListSeparator),
		strings.Join(flags, e.options.ListSeparator),
		run.ContentHash,
		run.Disclaimer,
	}

	if err := e.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	e.rowCount++
	return nil
}

// WriteRuns writes runs in the given order and flushes
func (e *CSVExporter) WriteRuns(runs []verification.Run) error {
	if err := e.WriteHeader(); err != nil {
		return err
	}
	for _, run := range runs {
		if err := e.WriteRun(run); err != nil {
			return err
		}
	}
	return e.Flush()
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

// RowCount returns the number of runs written
func (e *CSVExporter) RowCount() int {
	return e.rowCount
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
