// Package logging writes session reports for cabingain runs.
// This file contains the table formatting used by the report's
// min/mean/max metric sections.

package logging

import (
	"fmt"
	"math"
	"strings"

	"github.com/linuxmatters/cabingain/internal/processor"
)

// MetricRow represents a single row in a metric table.
// Values are pre-formatted strings so rows can mix precisions.
type MetricRow struct {
	Label          string   // Row label, e.g., "Applied gain"
	Values         []string // One value per column (Min, Mean, Max)
	Unit           string   // Unit suffix, e.g., "dB", "km/h", "" for unitless
	Interpretation string   // Optional interpretation text (only shown if non-empty)
}

// MetricTable formats aligned columns for metric comparison.
// Handles variable column widths, missing values, and optional interpretation column.
type MetricTable struct {
	Headers []string    // Column headers, e.g., ["Min", "Mean", "Max"]
	Rows    []MetricRow // Data rows
}

// String renders the table with aligned columns.
// - Labels are left-aligned
// - Numeric values are right-aligned within their column
// - Units are appended after the last value column
// - Interpretation column only shown if any row has one
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasInterpretation := false
	for _, row := range t.Rows {
		if row.Interpretation != "" {
			hasInterpretation = true
			break
		}
	}

	labelWidth := 0
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, len(row.Label))
	}

	valueWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		valueWidths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, val := range row.Values {
			if i < len(valueWidths) && len(val) > valueWidths[i] {
				valueWidths[i] = len(val)
			}
		}
	}

	unitWidth := 0
	for _, row := range t.Rows {
		unitWidth = max(unitWidth, len(row.Unit))
	}

	var sb strings.Builder

	// Header row
	sb.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, header := range t.Headers {
		fmt.Fprintf(&sb, "%*s  ", valueWidths[i], header)
	}
	if unitWidth > 0 {
		sb.WriteString(strings.Repeat(" ", unitWidth+1))
	}
	if hasInterpretation {
		sb.WriteString("Interpretation")
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		fmt.Fprintf(&sb, "%-*s  ", labelWidth, row.Label)

		for i := range t.Headers {
			val := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				val = row.Values[i]
			}
			fmt.Fprintf(&sb, "%*s  ", valueWidths[i], val)
		}

		if unitWidth > 0 {
			fmt.Fprintf(&sb, "%-*s ", unitWidth, row.Unit)
		}
		if hasInterpretation {
			sb.WriteString(row.Interpretation)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// =============================================================================
// Metric Formatting Helpers
// =============================================================================

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// formatMetric formats a numeric value with appropriate precision.
// Handles:
// - Regular floats: formatted to specified decimal places
// - Very small values (< 0.0001): scientific notation
// - NaN/Inf: returns MissingValue
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricSigned formats a value with explicit sign for positive values.
// Used for gains like "+2.5 dB" or "-1.2 dB".
func formatMetricSigned(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%+.*f", decimals, value)
}

// formatMetricWithUnit combines value and unit for display.
// Returns "value unit" if unit is non-empty, otherwise just "value".
func formatMetricWithUnit(value float64, decimals int, unit string) string {
	formatted := formatMetric(value, decimals)
	if formatted == MissingValue || unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// formatPercent renders part/total as a percentage, or MissingValue when
// total is zero.
func formatPercent(part, total int) string {
	if total <= 0 {
		return MissingValue
	}
	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(total))
}

// =============================================================================
// Table Builder Helpers
// =============================================================================

// NewMetricTable creates a new MetricTable with Min/Mean/Max headers.
func NewMetricTable() *MetricTable {
	return &MetricTable{
		Headers: []string{"Min", "Mean", "Max"},
		Rows:    make([]MetricRow, 0),
	}
}

// AddRow adds a row to the table with pre-formatted values.
func (t *MetricTable) AddRow(label string, values []string, unit string, interpretation string) {
	t.Rows = append(t.Rows, MetricRow{
		Label:          label,
		Values:         values,
		Unit:           unit,
		Interpretation: interpretation,
	})
}

// AddRangeRow adds a min/mean/max row from r, scaled through conv.
// An empty range renders as missing values. A nil conv leaves values as-is.
func (t *MetricTable) AddRangeRow(label string, r processor.Range, conv func(float64) float64, decimals int, signed bool, unit string, interpretation string) {
	format := formatMetric
	if signed {
		format = formatMetricSigned
	}
	if conv == nil {
		conv = func(v float64) float64 { return v }
	}

	values := []string{MissingValue, MissingValue, MissingValue}
	if r.Count() > 0 {
		values = []string{
			format(conv(r.Min), decimals),
			format(conv(r.Mean()), decimals),
			format(conv(r.Max), decimals),
		}
	}
	t.AddRow(label, values, unit, interpretation)
}
