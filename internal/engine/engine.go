// Package engine orchestrates workspace synchronization: it wires the
// registry, the remote client, the scanner, the differ, and the
// resolver into per-project sync runs.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftsync/draftsync/internal/diff"
	"github.com/draftsync/draftsync/internal/metrics"
	"github.com/draftsync/draftsync/internal/registry"
	"github.com/draftsync/draftsync/internal/resolve"
	"github.com/draftsync/draftsync/internal/scan"
	"github.com/draftsync/draftsync/pkg/models"
)

// instructionsFile receives the remote project's instruction template.
// It is remote-authoritative and excluded from normal diffing.
const instructionsFile = "AGENTS.md"

// RemoteClient is the subset of the remote API the engine drives.
// *remote.Client satisfies it; tests substitute fakes.
type RemoteClient interface {
	ListProjects(ctx context.Context) ([]models.ProjectDescriptor, error)
	ListFiles(ctx context.Context, projectID string) (models.Inventory, string, error)
	FetchContent(ctx context.Context, projectID, path string) ([]byte, error)
	PutContent(ctx context.Context, projectID, path string, data []byte) (models.FileRecord, error)
	DeleteFile(ctx context.Context, projectID, path string) error
	ListThreads(ctx context.Context, projectID string) ([]models.ThreadSummary, error)
	FetchThread(ctx context.Context, projectID, threadID string) (*models.ThreadContent, error)
}

// Options steer a sync run.
type Options struct {
	DryRun         bool
	Bidirectional  bool
	IncludeChats   bool
	Strategy       resolve.Strategy
	PruneRemote    bool
	PruneLocal     bool
	Sequential     bool
	Workers        int
	ProjectTimeout time.Duration
	Prompt         resolve.PromptFunc
}

// Engine runs workspace syncs. All collaborators are injected.
type Engine struct {
	reg    *registry.Registry
	client RemoteClient
	logger *zap.Logger
}

// New returns an Engine over the given registry and remote client.
func New(reg *registry.Registry, client RemoteClient, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{reg: reg, client: client, logger: logger}
}

// SyncProject synchronizes one project folder with its remote
// counterpart. The returned result is always usable; a failure that
// prevented any reconciliation is reported via result.Fatal.
func (e *Engine) SyncProject(ctx context.Context, project models.ProjectDescriptor, opts Options) models.SyncResult {
	start := time.Now()
	result := models.SyncResult{Project: project}
	defer func() {
		result.Duration = time.Since(start)
		metrics.RecordProjectSync(result.Duration, result.OK())
	}()

	folder, err := e.reg.ResolveFolder(project)
	if err != nil {
		result.Fatal = err.Error()
		return result
	}
	result.Project.LocalFolder = folder
	dir := filepath.Join(e.reg.Root(), folder)
	log := e.logger.With(zap.String("project", project.ID), zap.String("folder", folder))

	remoteInv, instructions, err := e.client.ListFiles(ctx, project.ID)
	if err != nil {
		log.Warn("remote listing failed", zap.Error(err))
		result.Fatal = fmt.Sprintf("list remote files: %v", err)
		return result
	}

	local, err := scan.Scan(dir)
	if err != nil {
		result.Fatal = fmt.Sprintf("scan local folder: %v", err)
		return result
	}
	delete(local, instructionsFile)
	delete(remoteInv, instructionsFile)

	snapshotPath := diff.SnapshotPath(dir, scan.MarkerDir)
	prior, err := diff.LoadSnapshot(snapshotPath)
	if err != nil {
		log.Warn("unreadable sync snapshot, treating as first run", zap.Error(err))
		prior = nil
	}

	entries := diff.Diff(local, remoteInv, prior)
	decisions := resolve.Resolve(entries, resolve.Options{
		Strategy:    opts.Strategy,
		Push:        opts.Bidirectional,
		Pull:        true,
		PruneRemote: opts.PruneRemote,
		PruneLocal:  opts.PruneLocal,
		Prompt:      opts.Prompt,
	})

	if opts.DryRun {
		for _, d := range decisions {
			if d.Action != models.ActionNone {
				result.Pending = append(result.Pending, d)
			}
		}
		return result
	}

	if instructions != "" {
		if err := e.writeInstructions(dir, instructions); err != nil {
			result.Errors = append(result.Errors, models.SyncError{
				Path: instructionsFile, Op: "write", Message: err.Error(),
			})
		}
	}

	entryByPath := make(map[string]models.DiffEntry, len(entries))
	for _, en := range entries {
		entryByPath[en.RelativePath] = en
	}
	e.apply(ctx, project.ID, dir, decisions, entryByPath, &result, log)
	if !result.OK() {
		return result
	}

	if opts.IncludeChats {
		if err := e.syncThreads(ctx, project.ID, dir, log); err != nil {
			result.Errors = append(result.Errors, models.SyncError{
				Path: scan.ChatsDir, Op: "threads", Message: err.Error(),
			})
		}
	}

	if err := e.writeSnapshot(ctx, project.ID, dir, snapshotPath); err != nil {
		log.Warn("snapshot not updated", zap.Error(err))
		result.Errors = append(result.Errors, models.SyncError{
			Path: snapshotPath, Op: "snapshot", Message: err.Error(),
		})
	}
	if err := writeMarker(dir, project); err != nil {
		log.Warn("project marker not updated", zap.Error(err))
	}

	log.Info("project synced",
		zap.Int("uploaded", result.Uploaded),
		zap.Int("downloaded", result.Downloaded),
		zap.Int("deleted", result.Deleted),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result
}

// apply executes the decisions best-effort: each failure is recorded
// and the remaining actions continue. Cancellation is honored between
// file actions.
func (e *Engine) apply(ctx context.Context, projectID, dir string, decisions []models.ConflictDecision, entries map[string]models.DiffEntry, result *models.SyncResult, log *zap.Logger) {
	for _, d := range decisions {
		if err := ctx.Err(); err != nil {
			result.Fatal = err.Error()
			return
		}
		if d.StrategyUsed != "" && d.Action != models.ActionNone {
			result.ConflictsResolved++
			metrics.RecordConflictResolved(d.ChosenSide.String())
		}

		var err error
		switch d.Action {
		case models.ActionNone:
			if en, ok := entries[d.RelativePath]; ok && en.Classification != models.BothUnchanged {
				result.Skipped++
			}
			continue
		case models.ActionUpload:
			err = e.uploadFile(ctx, projectID, dir, d.RelativePath)
			if err == nil {
				result.Uploaded++
			}
		case models.ActionDownload:
			var remoteAt time.Time
			if en, ok := entries[d.RelativePath]; ok && en.Remote != nil {
				remoteAt = en.Remote.ModifiedAt
			}
			err = e.downloadFile(ctx, projectID, dir, d.RelativePath, remoteAt)
			if err == nil {
				result.Downloaded++
			}
		case models.ActionDeleteLocal:
			err = os.Remove(filepath.Join(dir, filepath.FromSlash(d.RelativePath)))
			if os.IsNotExist(err) {
				err = nil
			}
			if err == nil {
				result.Deleted++
			}
		case models.ActionDeleteRemote:
			err = e.client.DeleteFile(ctx, projectID, d.RelativePath)
			if err == nil {
				result.Deleted++
			}
		}

		metrics.RecordFileAction(d.Action.String(), err == nil)
		if err != nil {
			log.Warn("file action failed",
				zap.String("path", d.RelativePath),
				zap.String("action", d.Action.String()),
				zap.Error(err))
			result.Errors = append(result.Errors, models.SyncError{
				Path:    d.RelativePath,
				Op:      d.Action.String(),
				Message: err.Error(),
			})
		}
	}
}

func (e *Engine) uploadFile(ctx context.Context, projectID, dir, rel string) error {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("read local file: %w", err)
	}
	if _, err := e.client.PutContent(ctx, projectID, rel, data); err != nil {
		return err
	}
	metrics.RecordUpload(int64(len(data)))
	return nil
}

// downloadFile fetches remote content and installs it via temp file +
// rename. The local mtime is set to the remote timestamp so a rerun
// sees the file as unchanged.
func (e *Engine) downloadFile(ctx context.Context, projectID, dir, rel string, remoteAt time.Time) error {
	data, err := e.client.FetchContent(ctx, projectID, rel)
	if err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.FromSlash(rel))
	if err := writeFileAtomic(target, data); err != nil {
		return err
	}
	if !remoteAt.IsZero() {
		if err := os.Chtimes(target, remoteAt, remoteAt); err != nil {
			return fmt.Errorf("set mtime: %w", err)
		}
	}
	metrics.RecordDownload(int64(len(data)))
	return nil
}

func (e *Engine) writeInstructions(dir, instructions string) error {
	target := filepath.Join(dir, instructionsFile)
	if existing, err := os.ReadFile(target); err == nil && string(existing) == instructions {
		return nil
	}
	return writeFileAtomic(target, []byte(instructions))
}

// writeSnapshot records the post-sync common state: the paths present
// on both sides, keyed to the remote hash. Paths known to one side
// only stay out so a later absence is not mistaken for a deletion.
func (e *Engine) writeSnapshot(ctx context.Context, projectID, dir, path string) error {
	local, err := scan.Scan(dir)
	if err != nil {
		return err
	}
	remoteInv, _, err := e.client.ListFiles(ctx, projectID)
	if err != nil {
		return err
	}
	common := make(models.Inventory)
	for p, rec := range remoteInv {
		if p == instructionsFile {
			continue
		}
		if _, ok := local[p]; ok {
			rec.ExistsLocally = true
			common[p] = rec
		}
	}
	return diff.SaveSnapshot(path, common)
}

// markerFile records which remote project a folder belongs to.
type markerFile struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	SyncedAt time.Time `json:"synced_at"`
}

func writeMarker(dir string, project models.ProjectDescriptor) error {
	data, err := json.MarshalIndent(markerFile{
		ID:       project.ID,
		Name:     project.DisplayName,
		SyncedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, scan.MarkerDir, "project.json"), data)
}

func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".draftsync-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install file: %w", err)
	}
	return nil
}

// SyncAll synchronizes every project in the workspace. Projects run in
// a bounded worker pool; the registry's last_sync advances only when
// the whole pass completed and at least one project succeeded.
func (e *Engine) SyncAll(ctx context.Context, opts Options) (*models.WorkspaceSyncReport, error) {
	started := time.Now()
	report := &models.WorkspaceSyncReport{Started: started.UTC()}

	projects, err := e.projectSet(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetProjectsTracked(len(projects))

	workers := opts.Workers
	if opts.Sequential || workers < 1 {
		workers = 1
	}

	results := make(chan models.SyncResult, len(projects))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, p := range projects {
		select {
		case <-ctx.Done():
			results <- models.SyncResult{Project: p, Fatal: ctx.Err().Error()}
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(project models.ProjectDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			runCtx := ctx
			if opts.ProjectTimeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, opts.ProjectTimeout)
				defer cancel()
			}
			results <- e.SyncProject(runCtx, project, opts)
		}(p)
	}
	wg.Wait()
	close(results)

	for r := range results {
		report.Results = append(report.Results, r)
	}
	sortResults(report.Results)
	report.Duration = time.Since(started)

	if !opts.DryRun && report.Succeeded() > 0 {
		e.reg.SetLastSync(started.UTC().Format(time.RFC3339))
	}
	if err := e.reg.Save(); err != nil {
		return report, fmt.Errorf("save workspace record: %w", err)
	}
	return report, nil
}

// projectSet returns the projects to sync. The remote listing is
// authoritative when reachable and records mappings for projects seen
// for the first time; offline, the registry's known set is used.
func (e *Engine) projectSet(ctx context.Context) ([]models.ProjectDescriptor, error) {
	projects, err := e.client.ListProjects(ctx)
	if err == nil {
		for i := range projects {
			folder, rerr := e.reg.ResolveFolder(projects[i])
			if rerr != nil {
				return nil, rerr
			}
			projects[i].LocalFolder = folder
		}
		return projects, nil
	}

	ids := e.reg.Projects()
	if len(ids) == 0 {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	e.logger.Warn("remote project listing failed, syncing known projects", zap.Error(err))
	for _, id := range ids {
		folder, _ := e.reg.Folder(id)
		projects = append(projects, models.ProjectDescriptor{
			ID:          id,
			DisplayName: folder,
			LocalFolder: folder,
		})
	}
	return projects, nil
}

func sortResults(results []models.SyncResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Project.ID < results[j].Project.ID
	})
}
