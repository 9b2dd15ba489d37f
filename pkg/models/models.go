// Package models contains the shared data types used across the sync engine.
package models

import (
	"sort"
	"time"
)

// ProjectDescriptor identifies one remote project and its local folder.
type ProjectDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	LocalFolder string `json:"local_folder,omitempty"`
}

// FileRecord describes one file on one side of a project.
type FileRecord struct {
	RelativePath   string    `json:"relative_path"`
	ContentHash    string    `json:"content_hash"`
	SizeBytes      int64     `json:"size_bytes"`
	ModifiedAt     time.Time `json:"modified_at"`
	ExistsLocally  bool      `json:"exists_locally"`
	ExistsRemotely bool      `json:"exists_remotely"`
}

// Inventory is the set of file records known for one side of one project,
// keyed by forward-slash relative path. At most one record per path.
type Inventory map[string]FileRecord

// Paths returns the inventory's relative paths in sorted order.
func (inv Inventory) Paths() []string {
	paths := make([]string, 0, len(inv))
	for p := range inv {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Classification is the three-way diff outcome for a single path.
type Classification int

const (
	LocalOnly Classification = iota
	RemoteOnly
	BothUnchanged
	BothModified
	LocalDeleted
	RemoteDeleted
)

func (c Classification) String() string {
	switch c {
	case LocalOnly:
		return "local-only"
	case RemoteOnly:
		return "remote-only"
	case BothUnchanged:
		return "unchanged"
	case BothModified:
		return "conflict"
	case LocalDeleted:
		return "local-deleted"
	case RemoteDeleted:
		return "remote-deleted"
	default:
		return "unknown"
	}
}

// DiffEntry is the classification of one path, with the per-side snapshots
// that produced it. Produced fresh per sync run, never persisted.
type DiffEntry struct {
	RelativePath   string         `json:"relative_path"`
	Classification Classification `json:"classification"`
	Local          *FileRecord    `json:"local,omitempty"`
	Remote         *FileRecord    `json:"remote,omitempty"`
}

// Side names the side chosen to win a conflict.
type Side int

const (
	SideSkip Side = iota
	SideLocal
	SideRemote
)

func (s Side) String() string {
	switch s {
	case SideLocal:
		return "local"
	case SideRemote:
		return "remote"
	default:
		return "skip"
	}
}

// Action is the concrete file operation a decision translates to.
type Action int

const (
	ActionNone Action = iota
	ActionUpload
	ActionDownload
	ActionDeleteLocal
	ActionDeleteRemote
)

func (a Action) String() string {
	switch a {
	case ActionUpload:
		return "upload"
	case ActionDownload:
		return "download"
	case ActionDeleteLocal:
		return "delete-local"
	case ActionDeleteRemote:
		return "delete-remote"
	default:
		return "none"
	}
}

// ConflictDecision is the definitive per-file action for one diff entry.
// Consumed immediately by the orchestrator, never persisted.
type ConflictDecision struct {
	RelativePath string `json:"relative_path"`
	ChosenSide   Side   `json:"chosen_side"`
	StrategyUsed string `json:"strategy_used"`
	Action       Action `json:"action"`
}

// ThreadSummary describes one conversation thread of a project.
type ThreadSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ThreadMessage is a single message in a conversation thread.
type ThreadMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadContent is a full conversation thread.
type ThreadContent struct {
	Summary  ThreadSummary   `json:"summary"`
	Messages []ThreadMessage `json:"messages"`
}

// SyncError records one failed file action inside a project sync.
type SyncError struct {
	Path    string `json:"path"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

// SyncResult summarizes one project's sync run.
type SyncResult struct {
	Project           ProjectDescriptor `json:"project"`
	Uploaded          int               `json:"uploaded"`
	Downloaded        int               `json:"downloaded"`
	Deleted           int               `json:"deleted"`
	Skipped           int               `json:"skipped"`
	ConflictsResolved int               `json:"conflicts_resolved"`
	Errors            []SyncError       `json:"errors,omitempty"`

	// Fatal is set when the whole project failed before or during apply,
	// e.g. the remote listing was unreachable.
	Fatal string `json:"fatal,omitempty"`

	// Pending holds the resolved decisions of a dry run.
	Pending []ConflictDecision `json:"pending,omitempty"`

	Duration time.Duration `json:"duration"`
}

// OK reports whether the project sync completed without a fatal error.
func (r *SyncResult) OK() bool {
	return r.Fatal == ""
}

// Outcome classifies a whole workspace run for the caller's exit code.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePartial
	OutcomeTotalFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	default:
		return "total-failure"
	}
}

// WorkspaceSyncReport aggregates one SyncResult per project.
type WorkspaceSyncReport struct {
	Results  []SyncResult  `json:"results"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Succeeded returns the number of projects that synced without a fatal error.
func (r *WorkspaceSyncReport) Succeeded() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of projects that failed outright.
func (r *WorkspaceSyncReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Outcome classifies the run: every project failed means total failure,
// any failure among successes means partial. An empty workspace is a
// successful no-op.
func (r *WorkspaceSyncReport) Outcome() Outcome {
	switch {
	case len(r.Results) == 0:
		return OutcomeSuccess
	case r.Succeeded() == 0:
		return OutcomeTotalFailure
	case r.Failed() > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}
