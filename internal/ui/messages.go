package ui

import (
	"github.com/linuxmatters/cabingain/internal/processor"
)

// StatusMsg carries one gain update from the processor
type StatusMsg struct {
	Status processor.Status
}

// SessionCompleteMsg indicates the session has ended
type SessionCompleteMsg struct {
	Summary    processor.Summary
	ReportPath string // empty when no report was written
	Error      error
}
