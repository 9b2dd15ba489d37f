// Package registry tracks the workspace root and the mapping from
// remote project ids to local folder names.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/draftsync/draftsync/pkg/models"
)

// ErrNotInitialized is returned when no workspace record exists yet.
var ErrNotInitialized = errors.New("registry: workspace not initialized")

const recordName = "workspace.json"

// Record is the persisted workspace state. ProjectMap maps remote
// project ids to folder names under RootPath.
type Record struct {
	RootPath   string            `json:"root_path"`
	ProjectMap map[string]string `json:"project_map"`
	LastSync   string            `json:"last_sync,omitempty"`
}

// Registry manages the workspace record under a config directory.
// Safe for concurrent use.
type Registry struct {
	configDir string

	mu     sync.Mutex
	record *Record
}

// Open returns a Registry backed by configDir. The record, if any, is
// not loaded until Load or Init is called.
func Open(configDir string) *Registry {
	return &Registry{configDir: configDir}
}

func (r *Registry) recordPath() string {
	return filepath.Join(r.configDir, recordName)
}

// Init creates a fresh workspace record rooted at root. An existing
// record is replaced; mappings do not survive re-initialization.
func (r *Registry) Init(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	r.mu.Lock()
	r.record = &Record{
		RootPath:   abs,
		ProjectMap: make(map[string]string),
	}
	r.mu.Unlock()
	return r.Save()
}

// Load reads the workspace record. Returns ErrNotInitialized when the
// record file does not exist.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.recordPath())
	if os.IsNotExist(err) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("read workspace record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("parse workspace record: %w", err)
	}
	if rec.ProjectMap == nil {
		rec.ProjectMap = make(map[string]string)
	}
	r.mu.Lock()
	r.record = &rec
	r.mu.Unlock()
	return nil
}

// Save writes the record atomically: temp file in the same directory,
// then rename.
func (r *Registry) Save() error {
	r.mu.Lock()
	if r.record == nil {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	data, err := json.MarshalIndent(r.record, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.configDir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(r.configDir, recordName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, r.recordPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit workspace record: %w", err)
	}
	return nil
}

// Root returns the workspace root path.
func (r *Registry) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return ""
	}
	return r.record.RootPath
}

// LastSync returns the recorded last-sync timestamp, RFC 3339 or empty.
func (r *Registry) LastSync() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return ""
	}
	return r.record.LastSync
}

// SetLastSync records the last successful workspace sync time.
func (r *Registry) SetLastSync(ts string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record != nil {
		r.record.LastSync = ts
	}
}

// Projects returns the tracked project ids, sorted.
func (r *Registry) Projects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return nil
	}
	ids := make([]string, 0, len(r.record.ProjectMap))
	for id := range r.record.ProjectMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Folder returns the mapped folder for a project id, if any.
func (r *Registry) Folder(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return "", false
	}
	folder, ok := r.record.ProjectMap[id]
	return folder, ok
}

// ResolveFolder returns the local folder name for a project, deriving
// and recording one from its display name on first sight. The derived
// name is stable across runs: once mapped, the mapping wins even if
// the remote display name later changes.
func (r *Registry) ResolveFolder(project models.ProjectDescriptor) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return "", ErrNotInitialized
	}
	if folder, ok := r.record.ProjectMap[project.ID]; ok {
		return folder, nil
	}

	folder := SanitizeFolderName(project.DisplayName)
	if r.folderTaken(folder, project.ID) {
		folder = folder + "-" + idSuffix(project.ID)
	}
	r.record.ProjectMap[project.ID] = folder
	return folder, nil
}

func (r *Registry) folderTaken(folder, id string) bool {
	for otherID, other := range r.record.ProjectMap {
		if other == folder && otherID != id {
			return true
		}
	}
	return false
}

// idSuffix returns the first 6 hex characters of the project id,
// padding short ids rather than truncating to nothing.
func idSuffix(id string) string {
	hex := make([]rune, 0, 6)
	for _, c := range strings.ToLower(id) {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			hex = append(hex, c)
			if len(hex) == 6 {
				break
			}
		}
	}
	if len(hex) == 0 {
		return "x"
	}
	return string(hex)
}

// SanitizeFolderName maps a project display name to a filesystem-safe
// folder name. Only characters invalid on common filesystems are
// replaced; all other Unicode, emoji included, passes through.
func SanitizeFolderName(name string) string {
	name = norm.NFC.String(name)
	var b strings.Builder
	for _, c := range name {
		switch {
		case c < 0x20 || c == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, c):
			b.WriteRune('_')
		default:
			b.WriteRune(c)
		}
	}
	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "unnamed-project"
	}
	return out
}

// Discover lists existing project folders under the workspace root,
// skipping dot-directories. Used to reconcile a stale registry.
func (r *Registry) Discover() ([]string, error) {
	root := r.Root()
	if root == "" {
		return nil, ErrNotInitialized
	}
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace root: %w", err)
	}
	var folders []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		folders = append(folders, e.Name())
	}
	sort.Strings(folders)
	return folders, nil
}

// Orphans reports folders under the root that no tracked project maps
// to. These are surfaced in status output, never deleted.
func (r *Registry) Orphans() ([]string, error) {
	folders, err := r.Discover()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	mapped := make(map[string]bool, len(r.record.ProjectMap))
	for _, folder := range r.record.ProjectMap {
		mapped[norm.NFC.String(folder)] = true
	}
	r.mu.Unlock()
	var orphans []string
	for _, f := range folders {
		if !mapped[norm.NFC.String(f)] {
			orphans = append(orphans, f)
		}
	}
	return orphans, nil
}
