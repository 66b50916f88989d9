package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/epiworld-go/epiworld/db"
)

const unexpectedErrorWhileError = "encountered error while %s: %s"

func sampleDatabase() *db.Database {
	d := db.New(3, 4, 1)
	d.RegisterVirus("flu", -1, 0)
	d.TotalMove(0, 1)
	d.VirusInc(0, 1)
	d.Record(0)
	d.RecordTransmission(0, 0, 1, 0, 0)
	return d
}

func labels(state int) string {
	return []string{"S", "I", "R"}[state]
}

func names(id int) string {
	if id < 0 {
		return ""
	}
	return "flu"
}

func TestCSVLogger_WriteAll_ProducesAllFiles(t *testing.T) {
	dir := t.TempDir()
	logger := NewCSVLogger(filepath.Join(dir, "run"))
	d := sampleDatabase()
	if err := WriteAll(logger, d, labels, names, names); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "writing all reports", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "closing logger", err)
	}

	wantSuffixes := []string{
		"virus_info", "virus_hist", "tool_info", "tool_hist",
		"total_hist", "transmission", "transition",
		"reproductive_number", "generation_time",
	}
	for _, suffix := range wantSuffixes {
		path := filepath.Join(dir, "run."+suffix+".csv")
		contents, err := os.ReadFile(path)
		if err != nil {
			t.Errorf(unexpectedErrorWhileError, "reading "+path, err)
			continue
		}
		if !strings.Contains(string(contents), "\n") {
			t.Errorf("expected %s to contain a header row, got %q", path, contents)
		}
	}
}

func TestCountVirusesByDate_IgnoresZeroCounts(t *testing.T) {
	d := sampleDatabase()
	count := countVirusesByDate(d)
	if got := count(0); got != 1 {
		t.Errorf("unequal count of active viruses: expected %d, got %d", 1, got)
	}
	if got := count(99); got != 0 {
		t.Errorf("unequal count of active viruses: expected %d, got %d", 0, got)
	}
}
