package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommitImportAndHistory(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	snap := Snapshot{
		ImportID: "imp-1",
		FileName: "pipeline.csv",
		Mapping:  map[string]string{"name": "Company Name", "sector": "Industry"},
		Skipped:  []string{"Internal Notes"},
		Rows:     3,
		Inserted: 2,
	}
	csvData := []byte("Company Name,Industry\nAcme,Robotics\n")

	commit, err := svc.CommitImport(snap, csvData, "Avery")
	if err != nil {
		t.Fatalf("CommitImport() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if !strings.Contains(commit.Message, "pipeline.csv") {
		t.Fatalf("unexpected commit message: %q", commit.Message)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "imports", "imp-1", "data.csv")); err != nil {
		t.Fatalf("archived csv missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "imports", "imp-1", "snapshot.json")); err != nil {
		t.Fatalf("snapshot.json missing: %v", err)
	}

	second := snap
	second.ImportID = "imp-2"
	second.FileName = "followups.csv"
	if _, err := svc.CommitImport(second, csvData, "Avery"); err != nil {
		t.Fatalf("second CommitImport() error = %v", err)
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	// Two imports plus the init commit.
	if len(history) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "followups.csv") {
		t.Fatalf("expected newest commit first, got %q", history[0].Message)
	}

	limited, err := svc.History(1)
	if err != nil {
		t.Fatalf("History(1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d commits", len(limited))
	}
}

func TestHistoryEmptyWithoutRepo(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}
