// Package report exports the per-file results of a batch session as CSV or
// XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"invoicer/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the header row shared by both formats.
var columns = []string{
	"Original File",
	"Status",
	"New File",
	"Invoice Date",
	"Supplier",
	"Original Supplier",
	"Confidence",
	"Attempts",
	"Error Category",
	"Error",
}

// Writer wraps csv.Writer for exporting session results as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteResults converts results to CSV rows and writes them.
func (w *Writer) WriteResults(results []domain.ProcessingResult) error {
	for i := range results {
		if err := w.csv.Write(resultToRow(&results[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteCSV writes the BOM, the header and one row per result of sess.
func WriteCSV(out io.Writer, sess *domain.Session) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteResults(sess.Results); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// resultToRow converts a single result to a row. Invoice columns stay empty
// for failed files; error columns stay empty for renamed ones.
func resultToRow(r *domain.ProcessingResult) []string {
	row := make([]string, len(columns))
	row[0] = filepath.Base(r.OriginalPath)
	row[7] = strconv.Itoa(r.Attempts)

	if !r.Success {
		row[1] = "failed"
		row[8] = string(domain.CategoryFor(r.ErrorKind, r.Error))
		row[9] = r.Error
		return row
	}

	row[1] = "renamed"
	row[2] = filepath.Base(r.NewPath)
	if r.InvoiceData != nil {
		row[3] = r.InvoiceData.Date
		row[4] = r.InvoiceData.Supplier
		row[5] = r.InvoiceData.OriginalSupplier
		row[6] = formatConfidence(r.InvoiceData.Confidence)
	}
	return row
}

func formatConfidence(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a session id for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_session_id}_{YYYY-MM-DD}.{format}
func BuildFilename(sessionID string, format domain.ReportFormat, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(sessionID), now.Format("2006-01-02"), format)
}
