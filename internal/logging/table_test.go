package logging

import (
	"math"
	"strings"
	"testing"

	"github.com/linuxmatters/cabingain/internal/processor"
)

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"zero", 0.0, 2, "0.00"},
		{"positive", 3.14159, 2, "3.14"},
		{"negative", -16.5, 1, "-16.5"},
		{"large", 12345.6789, 2, "12345.68"},
		{"very_small_scientific", 0.00001, 2, "1.00e-05"},
		{"nan", math.NaN(), 2, MissingValue},
		{"positive_inf", math.Inf(1), 2, MissingValue},
		{"negative_inf", math.Inf(-1), 2, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetric(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetric(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricSigned(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"positive", 2.5, 1, "+2.5"},
		{"negative", -1.2, 1, "-1.2"},
		{"zero", 0.0, 1, "+0.0"},
		{"nan", math.NaN(), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricSigned(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricSigned(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricWithUnit(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		unit     string
		want     string
	}{
		{"with_unit", 75.0, 1, "dB", "75.0 dB"},
		{"no_unit", 0.6, 2, "", "0.60"},
		{"nan_with_unit", math.NaN(), 1, "dB", MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricWithUnit(tt.value, tt.decimals, tt.unit)
			if got != tt.want {
				t.Errorf("formatMetricWithUnit(%v, %d, %q) = %q, want %q", tt.value, tt.decimals, tt.unit, got, tt.want)
			}
		})
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(1, 4); got != "25.0%" {
		t.Errorf("formatPercent(1, 4) = %q", got)
	}
	if got := formatPercent(0, 0); got != MissingValue {
		t.Errorf("formatPercent(0, 0) = %q, want %q", got, MissingValue)
	}
}

func TestMetricTableString(t *testing.T) {
	t.Run("basic_three_column", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Estimated noise", []string{"58.2", "64.0", "71.9"}, "dB", "")
		table.AddRow("Applied gain", []string{"+3.1", "+11.0", "+16.8"}, "dB", "")

		output := table.String()
		for _, want := range []string{"Min", "Mean", "Max", "Estimated noise", "+16.8", "dB"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("with_interpretation", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Estimated noise", []string{"60.0", "62.0", "64.0"}, "dB", "urban driving")

		output := table.String()
		if !strings.Contains(output, "Interpretation") {
			t.Error("Output should contain 'Interpretation' header when rows have interpretations")
		}
		if !strings.Contains(output, "urban driving") {
			t.Error("Output should contain interpretation text")
		}
	})

	t.Run("missing_values", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Test Metric", []string{"-10.0", ""}, "dB", "") // Only 2 values for 3 columns

		if output := table.String(); !strings.Contains(output, " -  ") {
			t.Error("Missing values should display as dash")
		}
	})

	t.Run("empty_table", func(t *testing.T) {
		if output := NewMetricTable().String(); output != "" {
			t.Errorf("Empty table should return empty string, got %q", output)
		}
	})
}

func TestMetricTableAlignment(t *testing.T) {
	table := NewMetricTable()
	table.AddRow("Short", []string{"1", "2", "3"}, "", "")
	table.AddRow("Much Longer Label", []string{"100", "200", "300"}, "", "")

	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines (header + 2 data), got %d", len(lines))
	}
	// Right-aligned values end in the same column
	if len(lines[1]) != len(lines[2]) {
		t.Errorf("rows differ in width:\n%q\n%q", lines[1], lines[2])
	}
	if !strings.HasPrefix(lines[1], "Short            ") {
		t.Errorf("label not padded: %q", lines[1])
	}
}

func TestAddRangeRow(t *testing.T) {
	t.Run("populated", func(t *testing.T) {
		var r processor.Range
		for _, v := range []float64{-3, 0, 6} {
			r.Add(v)
		}
		table := NewMetricTable()
		table.AddRangeRow("Applied gain", r, nil, 1, true, "dB", "")
		got := table.Rows[0].Values
		want := []string{"-3.0", "+1.0", "+6.0"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("value %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("converted", func(t *testing.T) {
		var r processor.Range
		r.Add(100)
		table := NewMetricTable()
		table.AddRangeRow("Speed", r, func(v float64) float64 { return v / 2 }, 0, false, "", "")
		if got := table.Rows[0].Values[1]; got != "50" {
			t.Errorf("converted mean = %q, want 50", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRangeRow("Speed", processor.Range{}, nil, 1, false, "km/h", "")
		for i, v := range table.Rows[0].Values {
			if v != MissingValue {
				t.Errorf("value %d = %q, want %q", i, v, MissingValue)
			}
		}
	})
}
