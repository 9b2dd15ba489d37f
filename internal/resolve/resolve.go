// Package resolve turns diff classifications into per-file sync actions.
package resolve

import (
	"fmt"

	"github.com/draftsync/draftsync/pkg/models"
)

// Strategy selects which side wins a genuine conflict.
type Strategy int

const (
	RemoteWins Strategy = iota
	LocalWins
	Newer
	Prompt
)

func (s Strategy) String() string {
	switch s {
	case RemoteWins:
		return "remote-wins"
	case LocalWins:
		return "local-wins"
	case Newer:
		return "newer"
	case Prompt:
		return "prompt"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name as it appears in config and flags.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "remote-wins", "":
		return RemoteWins, nil
	case "local-wins":
		return LocalWins, nil
	case "newer":
		return Newer, nil
	case "prompt":
		return Prompt, nil
	default:
		return RemoteWins, fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// PromptFunc asks the caller to pick a side for one conflicted entry.
// Returning an error (or SideSkip) leaves the file untouched.
type PromptFunc func(models.DiffEntry) (models.Side, error)

// Options steer resolution. Push and Pull gate the transfer directions;
// deletions additionally require the matching prune flag — with pruning
// off, a deletion on one side is undone from the surviving copy.
type Options struct {
	Strategy    Strategy
	Push        bool
	Pull        bool
	PruneRemote bool
	PruneLocal  bool
	Prompt      PromptFunc
}

// Resolve produces exactly one decision per entry. It never touches the
// filesystem or the network; a prompt callback is the only way it can
// block, and only for the entry being asked about.
func Resolve(entries []models.DiffEntry, opts Options) []models.ConflictDecision {
	decisions := make([]models.ConflictDecision, 0, len(entries))
	for _, e := range entries {
		decisions = append(decisions, resolveOne(e, opts))
	}
	return decisions
}

func resolveOne(e models.DiffEntry, opts Options) models.ConflictDecision {
	d := models.ConflictDecision{RelativePath: e.RelativePath}

	switch e.Classification {
	case models.BothUnchanged:
		// Nothing to do.

	case models.LocalOnly:
		if opts.Push {
			d.ChosenSide = models.SideLocal
			d.Action = models.ActionUpload
		}

	case models.RemoteOnly:
		if opts.Pull {
			d.ChosenSide = models.SideRemote
			d.Action = models.ActionDownload
		}

	case models.BothModified:
		d.StrategyUsed = opts.Strategy.String()
		side := chooseSide(e, opts)
		switch {
		case side == models.SideLocal && opts.Push:
			d.ChosenSide = models.SideLocal
			d.Action = models.ActionUpload
		case side == models.SideRemote && opts.Pull:
			d.ChosenSide = models.SideRemote
			d.Action = models.ActionDownload
		}

	case models.LocalDeleted:
		// Deleted here, still on the remote.
		switch {
		case opts.PruneRemote && opts.Push:
			d.ChosenSide = models.SideLocal
			d.Action = models.ActionDeleteRemote
		case opts.Pull:
			d.ChosenSide = models.SideRemote
			d.Action = models.ActionDownload
		}

	case models.RemoteDeleted:
		// Deleted remotely, still here.
		switch {
		case opts.PruneLocal && opts.Pull:
			d.ChosenSide = models.SideRemote
			d.Action = models.ActionDeleteLocal
		case opts.Push:
			d.ChosenSide = models.SideLocal
			d.Action = models.ActionUpload
		}
	}
	return d
}

// chooseSide applies the configured strategy to a BothModified entry.
func chooseSide(e models.DiffEntry, opts Options) models.Side {
	switch opts.Strategy {
	case RemoteWins:
		return models.SideRemote
	case LocalWins:
		return models.SideLocal
	case Newer:
		if e.Local != nil && e.Remote != nil && e.Local.ModifiedAt.After(e.Remote.ModifiedAt) {
			return models.SideLocal
		}
		return models.SideRemote
	case Prompt:
		if opts.Prompt == nil {
			return models.SideSkip
		}
		side, err := opts.Prompt(e)
		if err != nil {
			return models.SideSkip
		}
		return side
	default:
		return models.SideSkip
	}
}
