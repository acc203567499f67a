package tidy

import (
	"fmt"

	"tidy-go/internal/model"
)

// Action is the terminal state a file reached during a scan.
type Action string

const (
	ActionMoved     Action = "moved"     // classified, relocated and recorded
	ActionDuplicate Action = "duplicate" // content already filed; moved to duplicates
	ActionSkipped   Action = "skipped"   // an error left the file in place
	ActionIgnored   Action = "ignored"   // hidden, inside the managed tree, or matched an ignore pattern
)

// Outcome is the per-file result of OrganizeFile.
type Outcome struct {
	Path        string
	Action      Action
	Category    Category
	Reason      string
	Destination string
	Hash        string

	// Original is the canonical record for duplicates.
	Original *model.HashRecord

	// Err is set for skipped files, and for moved files whose hash could
	// not be recorded.
	Err error
}

// Summary aggregates the outcomes of one scan pass.
type Summary struct {
	Processed  int
	Moved      int
	Duplicates int
	Skipped    int
	Ignored    int
	Outcomes   []*Outcome
}

// Add folds o into the summary. Ignored files do not count as processed.
func (s *Summary) Add(o *Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Action {
	case ActionMoved:
		s.Moved++
	case ActionDuplicate:
		s.Duplicates++
	case ActionSkipped:
		s.Skipped++
	case ActionIgnored:
		s.Ignored++
		return
	}
	s.Processed++
}

// Message is the human-readable notification text for the batch.
func (s *Summary) Message() string {
	msg := fmt.Sprintf("Organized %d files!", s.Processed)
	if s.Duplicates > 0 {
		msg += fmt.Sprintf(" Found %d duplicates.", s.Duplicates)
	}
	if s.Skipped > 0 {
		msg += fmt.Sprintf(" Skipped %d.", s.Skipped)
	}
	return msg
}
