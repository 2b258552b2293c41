package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const panelWidth = 60

var (
	amber = lipgloss.Color("#E8A317")
	muted = lipgloss.Color("#888888")
	green = lipgloss.Color("#00AA00")
	red   = lipgloss.Color("#FF5F5F")

	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(14)
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(red).Bold(true)
)

// renderDashboard renders the running session view
func renderDashboard(m Model) string {
	var b strings.Builder
	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderReadings(m))
	b.WriteString("\n")
	b.WriteString(renderFooter(m))
	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(amber).
		Render("cabingain 🚗 - Speed-Adaptive Volume")

	engine := "file"
	if m.Live {
		engine = "live"
	}
	subtitle := lipgloss.NewStyle().
		Foreground(muted).
		Italic(true).
		Render(fmt.Sprintf("%s | sensor %s | %s | session %s", m.Source, m.Mode, engine, shortID(m.SessionID)))

	return title + "\n" + subtitle
}

// renderReadings renders the sensor, noise and gain panel
func renderReadings(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(amber).
		Padding(0, 1).
		Width(panelWidth)

	if !m.HasStatus {
		return box.Render("Waiting for the first update...")
	}
	st := m.Last

	var c strings.Builder
	row := func(label, value string) {
		c.WriteString(labelStyle.Render(label))
		c.WriteString(value)
		c.WriteString("\n")
	}

	source := ""
	switch {
	case st.NoReading:
		source = " " + warnStyle.Render("no reading, gain held")
	case st.Fallback:
		source = " " + warnStyle.Render("simulated")
	}

	row("Speed", valueStyle.Render(m.Units.Format(st.SpeedKMH))+source)
	cabin := "-"
	if st.HasCabin {
		cabin = fmt.Sprintf("%.1f dB", st.CabinDB)
	}
	row("Cabin", valueStyle.Render(cabin))
	row("Noise", valueStyle.Render(fmt.Sprintf("%.1f dB", st.NoiseDB))+
		lipgloss.NewStyle().Foreground(muted).Render(fmt.Sprintf("  (speed term %.1f dB)", st.SpeedDB)))
	row("Target gain", fmt.Sprintf("%+.1f dB", st.RawGainDB))
	row("Applied gain", valueStyle.Render(fmt.Sprintf("%+.1f dB", st.GainDB))+fmt.Sprintf("  x%.2f", st.GainLinear))
	c.WriteString("\n")
	c.WriteString(renderGainMeter(st.GainDB, m.ClampMinDB, m.ClampMaxDB, 40))
	c.WriteString("\n")
	c.WriteString(renderSparkline(m.History, m.ClampMinDB, m.ClampMaxDB))
	if st.Limited > 0 {
		c.WriteString("\n")
		c.WriteString(warnStyle.Render(fmt.Sprintf("limiter engaged on %d samples", st.Limited)))
	}

	return box.Render(c.String())
}

// renderFooter renders progress for file sessions and elapsed time for live ones
func renderFooter(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(0, 1).
		Width(panelWidth)

	var content string
	if m.Last.Total > 0 {
		content = renderProgressBar(m.Last.Progress, 40) +
			fmt.Sprintf("\n⏱  %s of audio", formatClock(m.Last.Elapsed))
	} else {
		content = fmt.Sprintf("⏱  %s running, %d updates", formatClock(time.Since(m.StartTime)), m.Updates)
	}
	content += "\n" + lipgloss.NewStyle().Foreground(muted).Render("q to stop")
	return box.Render(content)
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = math.Max(0, math.Min(1, progress))
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("%s %d%%", bar, int(progress*100))
}

// renderGainMeter draws gainDB on a bar spanning [lo, hi] with a tick at 0 dB.
// Cells between 0 dB and the gain are filled, so cuts grow left and boosts
// grow right.
func renderGainMeter(gainDB, lo, hi float64, width int) string {
	if hi <= lo || width < 3 {
		return ""
	}
	cell := func(db float64) int {
		i := int(math.Round((db - lo) / (hi - lo) * float64(width-1)))
		return max(0, min(width-1, i))
	}
	zero, pos := cell(0), cell(gainDB)
	from, to := min(zero, pos), max(zero, pos)

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == zero && pos == zero:
			b.WriteString("│")
		case i >= from && i <= to:
			b.WriteString("█")
		case i == zero:
			b.WriteString("│")
		default:
			b.WriteString("░")
		}
	}
	color := green
	if gainDB >= hi-0.5 || gainDB <= lo+0.5 {
		color = red
	}
	return fmt.Sprintf("%+.0f %s %+.0f dB", lo, lipgloss.NewStyle().Foreground(color).Render(b.String()), hi)
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// renderSparkline renders the recent gain trace scaled to [lo, hi]
func renderSparkline(history []float64, lo, hi float64) string {
	if len(history) == 0 || hi <= lo {
		return ""
	}
	var b strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range history {
		i := int(math.Round((v - lo) / (hi - lo) * float64(top)))
		b.WriteRune(sparkLevels[max(0, min(top, i))])
	}
	return lipgloss.NewStyle().Foreground(amber).Render(b.String())
}

// renderCompletionSummary renders the final session summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	if m.Err != nil {
		b.WriteString(warnStyle.Render("✗ Session stopped"))
		b.WriteString("\n   Error: " + m.Err.Error() + "\n")
		return b.String()
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(green).
		Render("✓ Session complete")
	b.WriteString(header)
	b.WriteString("\n\n")

	s := m.Summary
	fmt.Fprintf(&b, "   %d updates over %s of audio\n", s.Frames, formatClock(s.Duration))
	if s.GainDB.Count() > 0 {
		fmt.Fprintf(&b, "   Gain %+.1f to %+.1f dB (mean %+.1f)\n", s.GainDB.Min, s.GainDB.Max, s.GainDB.Mean())
	}
	if s.FallbackFrames > 0 || s.NoReadingFrames > 0 {
		fmt.Fprintf(&b, "   %d simulated, %d held\n", s.FallbackFrames, s.NoReadingFrames)
	}
	if m.Report != "" {
		fmt.Fprintf(&b, "   Report: %s\n", m.Report)
	}
	return b.String()
}

// formatClock renders d as m:ss
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
