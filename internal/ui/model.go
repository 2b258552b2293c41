// Package ui provides the Bubbletea terminal dashboard for cabingain
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/cabingain/internal/locale"
	"github.com/linuxmatters/cabingain/internal/processor"
)

// gainHistoryLen is the number of updates kept for the gain trace
const gainHistoryLen = 48

// Options describe the session shown in the dashboard header
type Options struct {
	SessionID  string
	Source     string // input file name or "microphone"
	Mode       string // sensor mode
	Live       bool
	Units      locale.Unit
	ClampMinDB float64
	ClampMaxDB float64

	// OnQuit is called when the user quits before the session ends.
	OnQuit func()
}

// Model is the Bubbletea model for the live gain dashboard
type Model struct {
	Options

	Last      processor.Status
	HasStatus bool
	History   []float64 // recent smoothed gain, oldest first
	Updates   int

	StartTime time.Time
	Done      bool
	Summary   processor.Summary
	Report    string
	Err       error

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a dashboard for the described session
func NewModel(opts Options) Model {
	opts.Units = opts.Units.Resolve()
	return Model{
		Options:   opts,
		History:   make([]float64, 0, gainHistoryLen),
		StartTime: time.Now(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.Done && m.OnQuit != nil {
				m.OnQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case StatusMsg:
		m = m.withStatus(msg.Status)

	case SessionCompleteMsg:
		m.Done = true
		m.Summary = msg.Summary
		m.Report = msg.ReportPath
		m.Err = msg.Error
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) withStatus(st processor.Status) Model {
	m.Last = st
	m.HasStatus = true
	m.Updates++
	if len(m.History) == gainHistoryLen {
		m.History = m.History[1:]
	}
	m.History = append(m.History, st.GainDB)
	return m
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderDashboard(m)
}
