package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	j := NewJournal(dir)
	j.now = func() time.Time { return clock }

	for i := 1; i <= 3; i++ {
		if err := j.Write(JournalEntry{Tick: uint64(i * 20), Viewers: i, Enters: i * 9}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	path := j.Path()
	if filepath.Base(path) != "interest-2024-03-01-10.jsonl.zst" {
		t.Fatalf("path = %s", path)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("read %d entries", len(entries))
	}
	if entries[2].Tick != 60 || entries[2].Enters != 27 || !entries[2].Time.Equal(clock) {
		t.Fatalf("last entry = %+v", entries[2])
	}
}

func TestJournalRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	j := NewJournal(dir)
	j.now = func() time.Time { return clock }

	if err := j.Write(JournalEntry{Tick: 1}); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := j.Write(JournalEntry{Tick: 2}); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "interest-*.jsonl.zst"))
	if err != nil || len(files) != 2 {
		t.Fatalf("files = %v (%v)", files, err)
	}
}

func TestJournalAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for run := 0; run < 2; run++ {
		j := NewJournal(dir)
		j.now = func() time.Time { return clock }
		if err := j.Write(JournalEntry{Tick: uint64(run)}); err != nil {
			t.Fatal(err)
		}
		if err := j.Close(); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := ReadJournal(filepath.Join(dir, "interest-2024-03-01-10.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(entries) != 2 || entries[0].Tick != 0 || entries[1].Tick != 1 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestReadJournalMissing(t *testing.T) {
	if _, err := ReadJournal(filepath.Join(t.TempDir(), "nope.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("err = %v", err)
	}
}
