package diff

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/draftsync/draftsync/pkg/models"
)

func inv(entries ...models.FileRecord) models.Inventory {
	m := make(models.Inventory, len(entries))
	for _, e := range entries {
		m[e.RelativePath] = e
	}
	return m
}

func rec(path, hash string) models.FileRecord {
	return models.FileRecord{RelativePath: path, ContentHash: hash}
}

func classOf(t *testing.T, entries []models.DiffEntry, path string) models.Classification {
	t.Helper()
	for _, e := range entries {
		if e.RelativePath == path {
			return e.Classification
		}
	}
	t.Fatalf("no entry for %s", path)
	return 0
}

func TestDiff_IdenticalHashesAllUnchanged(t *testing.T) {
	local := inv(rec("a.md", "h1"), rec("b.md", "h2"))
	remote := inv(rec("a.md", "h1"), rec("b.md", "h2"))

	entries := Diff(local, remote, nil)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Classification != models.BothUnchanged {
			t.Errorf("%s classified %v, want BothUnchanged", e.RelativePath, e.Classification)
		}
	}
}

func TestDiff_Classifications(t *testing.T) {
	local := inv(rec("both-same.md", "h"), rec("both-diff.md", "hl"), rec("local-only.md", "h"))
	remote := inv(rec("both-same.md", "h"), rec("both-diff.md", "hr"), rec("remote-only.md", "h"))

	entries := Diff(local, remote, nil)
	if got := classOf(t, entries, "both-same.md"); got != models.BothUnchanged {
		t.Errorf("both-same = %v", got)
	}
	if got := classOf(t, entries, "both-diff.md"); got != models.BothModified {
		t.Errorf("both-diff = %v", got)
	}
	if got := classOf(t, entries, "local-only.md"); got != models.LocalOnly {
		t.Errorf("local-only = %v", got)
	}
	if got := classOf(t, entries, "remote-only.md"); got != models.RemoteOnly {
		t.Errorf("remote-only = %v", got)
	}
}

func TestDiff_DeletionsRequireSnapshot(t *testing.T) {
	prior := inv(rec("gone-local.md", "h"), rec("gone-remote.md", "h"))
	local := inv(rec("gone-remote.md", "h"))
	remote := inv(rec("gone-local.md", "h"))

	entries := Diff(local, remote, prior)
	if got := classOf(t, entries, "gone-local.md"); got != models.LocalDeleted {
		t.Errorf("gone-local = %v, want LocalDeleted", got)
	}
	if got := classOf(t, entries, "gone-remote.md"); got != models.RemoteDeleted {
		t.Errorf("gone-remote = %v, want RemoteDeleted", got)
	}

	// The same shape without a snapshot is two additions.
	entries = Diff(local, remote, nil)
	if got := classOf(t, entries, "gone-local.md"); got != models.RemoteOnly {
		t.Errorf("without snapshot gone-local = %v, want RemoteOnly", got)
	}
	if got := classOf(t, entries, "gone-remote.md"); got != models.LocalOnly {
		t.Errorf("without snapshot gone-remote = %v, want LocalOnly", got)
	}
}

func TestDiff_BothDroppedOmitted(t *testing.T) {
	prior := inv(rec("vanished.md", "h"))
	entries := Diff(inv(), inv(), prior)
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestDiff_SortedByPath(t *testing.T) {
	local := inv(rec("z.md", "h"), rec("a.md", "h"), rec("m.md", "h"))
	entries := Diff(local, inv(), nil)
	want := []string{"a.md", "m.md", "z.md"}
	for i, e := range entries {
		if e.RelativePath != want[i] {
			t.Fatalf("order %d = %s, want %s", i, e.RelativePath, want[i])
		}
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".draftsync", "inventory.json")
	in := inv(models.FileRecord{
		RelativePath: "a.md",
		ContentHash:  "abc",
		SizeBytes:    12,
		ModifiedAt:   time.Now().UTC().Truncate(time.Second),
	})

	if err := SaveSnapshot(path, in); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	out, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out["a.md"].ContentHash != "abc" || out["a.md"].SizeBytes != 12 {
		t.Errorf("unexpected record %+v", out["a.md"])
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	out, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil inventory, got %v", out)
	}
}
