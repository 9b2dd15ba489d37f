package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/draftsync/draftsync/internal/registry"
	"github.com/draftsync/draftsync/internal/scan"
	"github.com/draftsync/draftsync/pkg/models"
)

// syncThreads mirrors the project's conversation threads into the
// reserved chats/ subfolder as rendered markdown. Threads are
// remote-authoritative: local edits are overwritten, never pushed.
func (e *Engine) syncThreads(ctx context.Context, projectID, dir string, log *zap.Logger) error {
	threads, err := e.client.ListThreads(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	chatsDir := filepath.Join(dir, scan.ChatsDir)
	var errs error
	written := 0
	for _, t := range threads {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		target := filepath.Join(chatsDir, threadFileName(t))

		// An up-to-date rendering is left alone. The file mtime is
		// pinned to the thread's UpdatedAt on write.
		if info, err := os.Stat(target); err == nil && !info.ModTime().Before(t.UpdatedAt) {
			continue
		}

		content, err := e.client.FetchThread(ctx, projectID, t.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fetch thread %s: %w", t.ID, err))
			continue
		}
		if err := writeFileAtomic(target, []byte(renderThread(content))); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write thread %s: %w", t.ID, err))
			continue
		}
		if !t.UpdatedAt.IsZero() {
			os.Chtimes(target, t.UpdatedAt, t.UpdatedAt)
		}
		written++
	}
	if written > 0 {
		log.Debug("threads mirrored", zap.Int("written", written), zap.Int("total", len(threads)))
	}
	return errs
}

// threadFileName derives a stable filename from the thread name and a
// short id prefix, so renamed threads do not collide.
func threadFileName(t models.ThreadSummary) string {
	name := registry.SanitizeFolderName(t.Name)
	if name == "unnamed-project" {
		name = "untitled"
	}
	id := t.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s.md", name, id)
}

// renderThread formats a thread as markdown, one section per message.
func renderThread(t *models.ThreadContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Summary.Name)
	if !t.Summary.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "Updated: %s\n\n", t.Summary.UpdatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", m.Sender, strings.TrimRight(m.Text, "\n"))
	}
	return b.String()
}
