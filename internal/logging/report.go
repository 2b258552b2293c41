package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/cabingain/internal/gain"
	"github.com/linuxmatters/cabingain/internal/locale"
	"github.com/linuxmatters/cabingain/internal/processor"
)

// ReportData contains everything needed to write a session report
type ReportData struct {
	SessionID  string
	Mode       string // sensor mode, "auto" or "remote"
	Live       bool   // device callback engine rather than the chunk pipeline
	SensorURL  string // empty in auto mode
	InputPath  string // empty for microphone pass-through
	OutputPath string // rendered WAV, if any
	StartTime  time.Time
	EndTime    time.Time
	Config     processor.Config
	Summary    processor.Summary
	Units      locale.Unit
	SampleRate int
	Channels   int
	Underruns  int64
}

// ReportPath returns where the report for data is written:
// next to the rendered output, else next to the input, else in the working
// directory named after the session.
//
//	drive.wav          → drive-cabingain.log
//	out/drive-gain.wav → out/drive-gain.log
func ReportPath(data ReportData) string {
	switch {
	case data.OutputPath != "":
		return strings.TrimSuffix(data.OutputPath, filepath.Ext(data.OutputPath)) + ".log"
	case data.InputPath != "":
		return strings.TrimSuffix(data.InputPath, filepath.Ext(data.InputPath)) + "-cabingain.log"
	}
	id := data.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return "cabingain-" + id + ".log"
}

// GenerateReport writes the session report to ReportPath and returns the path.
func GenerateReport(data ReportData) (string, error) {
	logPath := ReportPath(data)
	f, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, data); err != nil {
		return "", fmt.Errorf("failed to write log file: %w", err)
	}
	return logPath, f.Close()
}

// WriteReport renders the report to w.
//
// Report structure:
// 1. Header - session, source and timestamp
// 2. Processing Summary - audio time against wall time
// 3. Gain Control - the tuning in effect
// 4. Measurements - min/mean/max table
// 5. Sensor Feed - coverage and limiter activity
func WriteReport(w io.Writer, data ReportData) error {
	ew := &errWriter{w: w}
	writeReportHeader(ew, data)
	writeProcessingSummary(ew, data)
	writeGainControl(ew, data.Config)
	writeMeasurementTable(ew, data)
	writeSensorFeed(ew, data)
	return ew.err
}

// errWriter keeps the first write error so section writers stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, nil
}

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "Cabingain Session Report")
	fmt.Fprintln(w, "========================")
	fmt.Fprintf(w, "Session: %s\n", data.SessionID)
	if data.InputPath != "" {
		fmt.Fprintf(w, "File: %s (%d Hz, %s)\n", filepath.Base(data.InputPath), data.SampleRate, channelName(data.Channels))
	} else {
		fmt.Fprintf(w, "Source: microphone (%d Hz, %s)\n", data.SampleRate, channelName(data.Channels))
	}
	if data.OutputPath != "" {
		fmt.Fprintf(w, "Output: %s\n", filepath.Base(data.OutputPath))
	}
	engine := "chunk pipeline"
	if data.Live {
		engine = "live engine"
	}
	sensor := data.Mode
	if data.SensorURL != "" {
		sensor += " (" + data.SensorURL + ")"
	}
	fmt.Fprintf(w, "Sensor: %s, %s\n", sensor, engine)
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(w, "")
}

func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	s := data.Summary
	fmt.Fprintf(w, "Audio:   %s in %d updates\n", formatDuration(s.Duration), s.Frames)

	total := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Elapsed: %s", formatDuration(total))
	if s.Duration > 0 && total > 0 {
		fmt.Fprintf(w, " (%.1fx real-time)", float64(s.Duration)/float64(total))
	}
	fmt.Fprintln(w, "")
	if data.Live {
		fmt.Fprintf(w, "Underruns: %d\n", data.Underruns)
	}
	fmt.Fprintln(w, "")
}

func writeGainControl(w io.Writer, cfg processor.Config) {
	writeSection(w, "Gain Control")

	m := cfg.Mapper
	fmt.Fprintf(w, "Policy:          %s\n", m.Policy)
	fmt.Fprintf(w, "Target loudness: %s\n", formatMetricWithUnit(m.TargetLoudnessDB, 1, "dB"))
	if m.UserOffsetDB != 0 {
		fmt.Fprintf(w, "User offset:     %s dB\n", formatMetricSigned(m.UserOffsetDB, 1))
	}
	if m.Policy == gain.PolicyBaselinePlusSensitivity {
		fmt.Fprintf(w, "Baseline noise:  %s, sensitivity %s\n",
			formatMetricWithUnit(m.BaselineNoiseDB, 1, "dB"), formatMetric(m.Sensitivity, 2))
	}
	fmt.Fprintf(w, "Clamp:           %s to %s dB\n", formatMetricSigned(m.ClampMinDB, 1), formatMetricSigned(m.ClampMaxDB, 1))
	fmt.Fprintf(w, "Attack/release:  %s / %s\n",
		formatDuration(seconds(cfg.Smoother.TauAttack)), formatDuration(seconds(cfg.Smoother.TauRelease)))
	fmt.Fprintf(w, "Speed model:     %s*ln(v+1) + %s dB\n", formatMetric(cfg.Speed.A, 2), formatMetric(cfg.Speed.B, 2))
	fmt.Fprintf(w, "Limiter knee:    %s of full scale\n", formatMetric(cfg.LimitThreshold, 2))
	fmt.Fprintln(w, "")
}

func writeMeasurementTable(w io.Writer, data ReportData) {
	writeSection(w, "Measurements")

	s := data.Summary
	units := data.Units.Resolve()
	table := NewMetricTable()
	table.AddRangeRow("Speed", s.Speed, units.FromKMH, 1, false, units.Label(), "")
	table.AddRangeRow("Estimated noise", s.NoiseDB, nil, 1, false, "dB", interpretNoise(s.NoiseDB))
	table.AddRangeRow("Applied gain", s.GainDB, nil, 1, true, "dB", interpretGain(s.GainDB, data.Config.Mapper))
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

func writeSensorFeed(w io.Writer, data ReportData) {
	writeSection(w, "Sensor Feed")

	s := data.Summary
	fmt.Fprintf(w, "Live readings:     %s\n", formatPercent(s.Frames-s.FallbackFrames-s.NoReadingFrames, s.Frames))
	fmt.Fprintf(w, "Fallback (mock):   %d (%s)\n", s.FallbackFrames, formatPercent(s.FallbackFrames, s.Frames))
	fmt.Fprintf(w, "No reading (held): %d (%s)\n", s.NoReadingFrames, formatPercent(s.NoReadingFrames, s.Frames))
	fmt.Fprintf(w, "Limited samples:   %d\n", s.LimitedSamples)
}

// interpretNoise places the mean estimate on a rough in-cabin scale.
func interpretNoise(r processor.Range) string {
	if r.Count() == 0 {
		return ""
	}
	switch mean := r.Mean(); {
	case mean < 55:
		return "quiet, parked or slow"
	case mean < 65:
		return "urban driving"
	case mean < 72:
		return "open road"
	default:
		return "motorway or rough surface"
	}
}

// interpretGain flags sessions that spent time pinned against a clamp bound.
func interpretGain(r processor.Range, m gain.MapperConfig) string {
	if r.Count() == 0 {
		return ""
	}
	const margin = 0.5
	switch {
	case r.Max >= m.ClampMaxDB-margin:
		return "reached upper clamp"
	case r.Min <= m.ClampMinDB+margin:
		return "reached lower clamp"
	}
	return "within bounds"
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	secs := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
