package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary aggregates the results of a run.
type Summary struct {
	Folder      string
	Seen        int
	Loaded      int
	Detected    int
	Boxes       int
	Saved       int
	Failures    []FileResult
	Interrupted bool
	Duration    time.Duration
}

// Add records one file result.
func (s *Summary) Add(r FileResult) {
	s.Seen++
	if r.Loaded {
		s.Loaded++
	}
	if r.Detected {
		s.Detected++
		s.Boxes += r.Boxes
	}
	if r.Saved {
		s.Saved++
	}
	if r.Failed() {
		s.Failures = append(s.Failures, r)
	}
}

// Render writes the summary as a table followed by one row per failed file.
func (s *Summary) Render(w io.Writer) error {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("detectnet-folder %s", s.Folder))
	t.AppendHeader(table.Row{"Files", "Loaded", "Detected", "Boxes", "Saved", "Failed", "Time"})
	t.AppendRow(table.Row{s.Seen, s.Loaded, s.Detected, s.Boxes, s.Saved, len(s.Failures), s.Duration.Round(time.Millisecond)})
	if s.Interrupted {
		t.AppendFooter(table.Row{"interrupted"})
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	if len(s.Failures) == 0 {
		return nil
	}

	f := table.NewWriter()
	f.AppendHeader(table.Row{"#", "File", "Stage", "Error"})
	for i, r := range s.Failures {
		f.AppendRow(table.Row{i + 1, r.Name, string(r.Stage), r.Err.Error()})
	}
	_, err := fmt.Fprintln(w, f.Render())
	return err
}
