// Package diff classifies the divergence between a local and a remote
// file inventory.
package diff

import (
	"sort"

	"github.com/draftsync/draftsync/pkg/models"
)

// Diff compares the two inventories and classifies every path in their
// union. The prior snapshot, when available, distinguishes a deletion
// from a file the other side never had: a path in the snapshot but now
// missing locally is a local deletion, and vice versa. Without a
// snapshot a one-sided file is always the other side's addition —
// first runs never imply deletes.
func Diff(local, remote models.Inventory, prior models.Inventory) []models.DiffEntry {
	paths := make(map[string]struct{}, len(local)+len(remote))
	for p := range local {
		paths[p] = struct{}{}
	}
	for p := range remote {
		paths[p] = struct{}{}
	}
	for p := range prior {
		paths[p] = struct{}{}
	}

	entries := make([]models.DiffEntry, 0, len(paths))
	for p := range paths {
		l, hasLocal := local[p]
		r, hasRemote := remote[p]
		_, hadBefore := prior[p]

		entry := models.DiffEntry{RelativePath: p}
		if hasLocal {
			lc := l
			entry.Local = &lc
		}
		if hasRemote {
			rc := r
			entry.Remote = &rc
		}

		switch {
		case hasLocal && hasRemote:
			if l.ContentHash == r.ContentHash {
				entry.Classification = models.BothUnchanged
			} else {
				entry.Classification = models.BothModified
			}
		case hasLocal:
			if hadBefore {
				entry.Classification = models.RemoteDeleted
			} else {
				entry.Classification = models.LocalOnly
			}
		case hasRemote:
			if hadBefore {
				entry.Classification = models.LocalDeleted
			} else {
				entry.Classification = models.RemoteOnly
			}
		default:
			// Present only in the snapshot: both sides dropped it
			// independently. Nothing to reconcile.
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	return entries
}
