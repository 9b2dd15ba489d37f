package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/draftsync/draftsync/pkg/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := Open(t.TempDir())
	if err := r.Init(filepath.Join(t.TempDir(), "workspace")); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func TestLoad_NotInitialized(t *testing.T) {
	r := Open(t.TempDir())
	if err := r.Load(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitSaveLoad_RoundTrip(t *testing.T) {
	configDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "ws")

	r := Open(configDir)
	if err := r.Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := r.ResolveFolder(models.ProjectDescriptor{ID: "abc123", DisplayName: "My Project"}); err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	r.SetLastSync("2026-08-29T10:00:00Z")
	if err := r.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r2 := Open(configDir)
	if err := r2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if folder, ok := r2.Folder("abc123"); !ok || folder != "My Project" {
		t.Errorf("Folder = %q, %v", folder, ok)
	}
	if r2.LastSync() != "2026-08-29T10:00:00Z" {
		t.Errorf("LastSync = %q", r2.LastSync())
	}
	if r2.Root() == "" {
		t.Error("Root is empty after Load")
	}
}

func TestSanitizeFolderName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Plain Name", "Plain Name"},
		{"notes/with/slashes", "notes_with_slashes"},
		{`a:b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h"},
		{"Résumé 📓 Notes", "Résumé 📓 Notes"},
		{"trailing dots...", "trailing dots"},
		{"  padded  ", "padded"},
		{"", "unnamed-project"},
		{"///", "unnamed-project"},
		{"ctrl\x01char", "ctrl_char"},
	}
	for _, tc := range cases {
		if got := SanitizeFolderName(tc.in); got != tc.want {
			t.Errorf("SanitizeFolderName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveFolder_CollisionSuffix(t *testing.T) {
	r := testRegistry(t)

	f1, err := r.ResolveFolder(models.ProjectDescriptor{ID: "deadbeef01", DisplayName: "Notes"})
	if err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	f2, err := r.ResolveFolder(models.ProjectDescriptor{ID: "cafebabe02", DisplayName: "Notes"})
	if err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	if f1 != "Notes" {
		t.Errorf("first folder = %q, want Notes", f1)
	}
	if f2 != "Notes-cafeba" {
		t.Errorf("second folder = %q, want Notes-cafeba", f2)
	}
}

func TestResolveFolder_Idempotent(t *testing.T) {
	r := testRegistry(t)
	p := models.ProjectDescriptor{ID: "p1", DisplayName: "Drafts"}

	first, _ := r.ResolveFolder(p)
	// A renamed remote project keeps its existing local folder.
	p.DisplayName = "Drafts (renamed)"
	second, _ := r.ResolveFolder(p)
	if first != second {
		t.Errorf("mapping changed: %q then %q", first, second)
	}
}

func TestDiscoverAndOrphans(t *testing.T) {
	r := testRegistry(t)
	root := r.Root()

	for _, d := range []string{"Tracked", "Stray", ".hidden"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveFolder(models.ProjectDescriptor{ID: "t1", DisplayName: "Tracked"}); err != nil {
		t.Fatal(err)
	}

	folders, err := r.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(folders) != 2 || folders[0] != "Stray" || folders[1] != "Tracked" {
		t.Errorf("Discover = %v", folders)
	}

	orphans, err := r.Orphans()
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != "Stray" {
		t.Errorf("Orphans = %v", orphans)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	r := Open(t.TempDir())
	if err := r.Init(filepath.Join(t.TempDir(), "ws")); err != nil {
		t.Fatal(err)
	}
	os.RemoveAll(r.Root())

	folders, err := r.Discover()
	if err != nil {
		t.Fatalf("Discover on missing root: %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("expected no folders, got %v", folders)
	}
}
