package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/aretw0/vellum/pkg/core"
)

func TestClient_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, filepath.Join(".vellum", "git.lock"), nil)
	ctx := context.Background()

	unlock, err := client.Lock(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := filepath.Join(tmpDir, ".vellum", "git.lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Error("Lock file not created")
	}

	// A second holder gives up when its context expires.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := client.Lock(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}

	unlock()
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Lock file not removed after unlock")
	}
}

func TestParseStatus(t *testing.T) {
	out := []byte(" M a.metadata\x00?? docs/b.data\x00R  new.data\x00old.data\x00D  gone.metadata\x00")
	want := []core.FileStatus{
		{Path: "a.metadata", Code: "M"},
		{Path: "docs/b.data", Code: "??"},
		{Path: "new.data", Code: "R"},
		{Path: "gone.metadata", Code: "D"},
	}
	if got := parseStatus(out); !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v", got)
	}
	if got := parseStatus(nil); len(got) != 0 {
		t.Errorf("empty status: %+v", got)
	}
}

func TestParseLog(t *testing.T) {
	out := "abc\x1fAnn\x1fann@example.org\x1f2025-01-02T03:04:05+00:00\x1fsecond\x1e\n" +
		"def\x1fBob\x1fbob@example.org\x1f2025-01-01T00:00:00+01:00\x1ffirst\x1e"
	revs, err := parseLog(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 {
		t.Fatalf("got %d revisions", len(revs))
	}
	if revs[0].Hash != "abc" || revs[0].Author.String() != "Ann <ann@example.org>" || revs[0].Message != "second" {
		t.Errorf("first record: %+v", revs[0])
	}
	if !revs[1].Date.Equal(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("date: %v", revs[1].Date)
	}

	if _, err := parseLog("broken\x1e"); err == nil {
		t.Error("expected an error for a short record")
	}
}
