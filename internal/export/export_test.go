package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rfidtrack/internal/attend"
)

func testSession() attend.Session {
	return attend.Session{
		ID:        "sess-1",
		Name:      "Standup",
		StartTime: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
	}
}

func testEntries(n int) []attend.AttendanceEntry {
	scan := time.Date(2026, time.March, 10, 9, 5, 0, 0, time.UTC)
	entries := make([]attend.AttendanceEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, attend.AttendanceEntry{
			Attendance: attend.Attendance{
				SessionID:  "sess-1",
				CardID:     "card",
				CardNumber: "A100",
				ScanTime:   scan.Add(time.Duration(i) * time.Minute),
			},
			ProfileName:  "Alice",
			ProfileEmail: "a@x.com",
		})
	}
	return entries
}

func TestCSVLineCount(t *testing.T) {
	t.Parallel()

	data, err := CSV(testSession(), testEntries(3))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4 (header + 3 rows)", len(lines))
	}
	if lines[0] != "Session Name,Start Time,End Time,Card Number,Profile Name,Email,Scan Time" {
		t.Fatalf("header = %q", lines[0])
	}
}

func TestCSVRoundTripWithAwkwardValues(t *testing.T) {
	t.Parallel()

	session := testSession()
	session.Name = `Town "Hall", evening`
	entries := []attend.AttendanceEntry{{
		Attendance: attend.Attendance{
			CardNumber: "A,100",
			ScanTime:   time.Date(2026, time.March, 10, 9, 5, 0, 0, time.UTC),
		},
		ProfileName:  "Alice\nO'Connor",
		ProfileEmail: `"a"@x.com`,
	}}

	data, err := CSV(session, entries)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	row := records[1]
	if row[0] != session.Name {
		t.Fatalf("session name = %q, want %q", row[0], session.Name)
	}
	if row[3] != "A,100" {
		t.Fatalf("card number = %q, want %q", row[3], "A,100")
	}
	if row[4] != "Alice\nO'Connor" {
		t.Fatalf("profile name = %q, want %q", row[4], "Alice\nO'Connor")
	}
	if row[5] != `"a"@x.com` {
		t.Fatalf("email = %q, want %q", row[5], `"a"@x.com`)
	}
	if row[6] != "2026-03-10 09:05:00" {
		t.Fatalf("scan time = %q, want %q", row[6], "2026-03-10 09:05:00")
	}
}

func TestCSVDeterministic(t *testing.T) {
	t.Parallel()

	session := testSession()
	entries := testEntries(5)
	first, err := CSV(session, entries)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	second, err := CSV(session, entries)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same input produced different bytes")
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	session := testSession()
	session.Name = "All Hands Meeting"
	now := time.Date(2026, time.March, 10, 11, 30, 45, 0, time.UTC)
	got := FileName(session, now)
	want := "Attendance_All_Hands_Meeting_20260310_113045.csv"
	if got != want {
		t.Fatalf("file name = %q, want %q", got, want)
	}
}

func TestFileSinkWritesReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "exports"))
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	session := testSession()
	data, err := CSV(session, testEntries(2))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	path, err := sink.Write(session, data, now)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(written, data) {
		t.Fatal("written bytes differ from rendered report")
	}
	if filepath.Base(path) != FileName(session, now) {
		t.Fatalf("path base = %q, want %q", filepath.Base(path), FileName(session, now))
	}
}

func TestNewFileSinkRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := NewFileSink(""); err == nil {
		t.Fatal("expected empty dir error")
	}
}
