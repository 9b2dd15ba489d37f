package engine

import (
	"context"
	"path/filepath"

	"github.com/draftsync/draftsync/internal/diff"
	"github.com/draftsync/draftsync/internal/resolve"
	"github.com/draftsync/draftsync/internal/scan"
	"github.com/draftsync/draftsync/pkg/models"
)

// ProjectStatus is one tracked project in a workspace status report.
type ProjectStatus struct {
	ID     string `json:"id"`
	Folder string `json:"folder"`
}

// WorkspaceStatus describes the registry state without touching the
// remote store.
type WorkspaceStatus struct {
	Root     string          `json:"root"`
	LastSync string          `json:"last_sync,omitempty"`
	Projects []ProjectStatus `json:"projects"`
	Orphans  []string        `json:"orphans,omitempty"`
}

// Status reports the tracked projects and any orphan folders under the
// workspace root. Read-only; works offline.
func (e *Engine) Status() (*WorkspaceStatus, error) {
	st := &WorkspaceStatus{
		Root:     e.reg.Root(),
		LastSync: e.reg.LastSync(),
	}
	for _, id := range e.reg.Projects() {
		folder, _ := e.reg.Folder(id)
		st.Projects = append(st.Projects, ProjectStatus{ID: id, Folder: folder})
	}
	orphans, err := e.reg.Orphans()
	if err != nil {
		return nil, err
	}
	st.Orphans = orphans
	return st, nil
}

// ProjectDiff is the pending state of one project: its classified
// entries and the actions a sync with the same options would take.
type ProjectDiff struct {
	Project models.ProjectDescriptor  `json:"project"`
	Entries []models.DiffEntry        `json:"entries,omitempty"`
	Pending []models.ConflictDecision `json:"pending,omitempty"`
	Fatal   string                    `json:"fatal,omitempty"`
}

// DiffWorkspace classifies every project without applying anything.
// With detailed set, unchanged entries are included too.
func (e *Engine) DiffWorkspace(ctx context.Context, opts Options, detailed bool) ([]ProjectDiff, error) {
	projects, err := e.projectSet(ctx)
	if err != nil {
		return nil, err
	}

	diffs := make([]ProjectDiff, 0, len(projects))
	for _, p := range projects {
		pd := ProjectDiff{Project: p}
		dir := filepath.Join(e.reg.Root(), p.LocalFolder)

		remoteInv, _, err := e.client.ListFiles(ctx, p.ID)
		if err != nil {
			pd.Fatal = err.Error()
			diffs = append(diffs, pd)
			continue
		}
		local, err := scan.Scan(dir)
		if err != nil {
			pd.Fatal = err.Error()
			diffs = append(diffs, pd)
			continue
		}
		delete(local, instructionsFile)
		delete(remoteInv, instructionsFile)

		prior, err := diff.LoadSnapshot(diff.SnapshotPath(dir, scan.MarkerDir))
		if err != nil {
			prior = nil
		}
		entries := diff.Diff(local, remoteInv, prior)
		decisions := resolve.Resolve(entries, resolve.Options{
			Strategy:    opts.Strategy,
			Push:        opts.Bidirectional,
			Pull:        true,
			PruneRemote: opts.PruneRemote,
			PruneLocal:  opts.PruneLocal,
		})

		for _, en := range entries {
			if detailed || en.Classification != models.BothUnchanged {
				pd.Entries = append(pd.Entries, en)
			}
		}
		for _, d := range decisions {
			if d.Action != models.ActionNone {
				pd.Pending = append(pd.Pending, d)
			}
		}
		diffs = append(diffs, pd)
	}
	return diffs, nil
}
