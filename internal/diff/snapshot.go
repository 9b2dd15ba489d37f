package diff

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/draftsync/draftsync/pkg/models"
)

const snapshotName = "inventory.json"

// snapshotFile is the on-disk form of a sync snapshot.
type snapshotFile struct {
	TakenAt time.Time          `json:"taken_at"`
	Files   []models.FileRecord `json:"files"`
}

// SnapshotPath returns the snapshot location inside a project's
// marker directory.
func SnapshotPath(projectDir, markerDir string) string {
	return filepath.Join(projectDir, markerDir, snapshotName)
}

// LoadSnapshot reads the inventory recorded at the last successful
// sync. A missing snapshot returns nil, nil: the first run has no
// deletion baseline.
func LoadSnapshot(path string) (models.Inventory, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	inv := make(models.Inventory, len(sf.Files))
	for _, rec := range sf.Files {
		inv[rec.RelativePath] = rec
	}
	return inv, nil
}

// SaveSnapshot writes the inventory atomically via temp file + rename.
func SaveSnapshot(path string, inv models.Inventory) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	sf := snapshotFile{TakenAt: time.Now().UTC()}
	for _, p := range inv.Paths() {
		sf.Files = append(sf.Files, inv[p])
	}
	data, err := json.MarshalIndent(&sf, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, snapshotName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
