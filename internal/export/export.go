// Package export renders attendance snapshots as CSV reports and writes
// them to files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rfidtrack/internal/attend"
)

// timeLayout is the fixed date-time rendering used for every timestamp
// column in the report.
const timeLayout = "2006-01-02 15:04:05"

// Header is the first row of every attendance report.
var Header = []string{"Session Name", "Start Time", "End Time", "Card Number", "Profile Name", "Email", "Scan Time"}

// Rows flattens a session and its attendance entries into report rows, one
// per entry, in the order provided (callers pass them pre-sorted, newest
// scan first). No header is included.
func Rows(session attend.Session, entries []attend.AttendanceEntry) [][]string {
	start := session.StartTime.Format(timeLayout)
	end := session.EndTime.Format(timeLayout)
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			session.Name,
			start,
			end,
			entry.CardNumber,
			entry.ProfileName,
			entry.ProfileEmail,
			entry.ScanTime.Format(timeLayout),
		})
	}
	return rows
}

// CSV renders the full report: header plus one row per entry, with standard
// quote-escaping for fields containing delimiters, quotes, or line breaks.
// The same input always produces byte-identical output.
func CSV(session attend.Session, entries []attend.AttendanceEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(Rows(session, entries)); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName builds the report file name for a session: the session name with
// spaces underscored plus a stamp of the export moment.
func FileName(session attend.Session, now time.Time) string {
	return fmt.Sprintf("Attendance_%s_%s.csv",
		strings.ReplaceAll(session.Name, " ", "_"),
		now.Format("20060102_150405"))
}

// Sink persists rendered reports and reports back where they landed.
type Sink interface {
	Write(session attend.Session, data []byte, now time.Time) (string, error)
}

// FileSink writes reports into a directory on the local filesystem.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Write stores the report and returns the resulting file path.
func (s *FileSink) Write(session attend.Session, data []byte, now time.Time) (string, error) {
	path := filepath.Join(s.dir, FileName(session, now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
