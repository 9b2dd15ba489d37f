// draftsync keeps a local workspace of project folders in step with a
// remote document store.
//
// Sub-commands:
//
//	draftsync init <root>   Initialize a workspace rooted at <root>
//	draftsync sync [flags]  Synchronize every tracked project
//	draftsync status        Show tracked projects and orphan folders
//	draftsync diff [flags]  Show pending actions without applying them
//
// Exit codes: 0 success, 1 total failure, 2 partial success.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/draftsync/draftsync/internal/config"
	"github.com/draftsync/draftsync/internal/engine"
	"github.com/draftsync/draftsync/internal/logging"
	"github.com/draftsync/draftsync/internal/metrics"
	"github.com/draftsync/draftsync/internal/registry"
	"github.com/draftsync/draftsync/internal/resolve"
	"github.com/draftsync/draftsync/pkg/codec"
	"github.com/draftsync/draftsync/pkg/models"
	"github.com/draftsync/draftsync/pkg/remote"
	"github.com/draftsync/draftsync/pkg/retry"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 1
	}

	cfg := config.Load()
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer logging.Sync()

	var code int
	switch os.Args[1] {
	case "init":
		code = cmdInit(cfg, os.Args[2:])
	case "sync":
		code = cmdSync(cfg, os.Args[2:])
	case "status":
		code = cmdStatus(cfg, os.Args[2:])
	case "diff":
		code = cmdDiff(cfg, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		code = 1
	}
	return code
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: draftsync <command> [flags]

Commands:
  init <root>   Initialize a workspace rooted at <root>
  sync          Synchronize every tracked project
  status        Show tracked projects and orphan folders
  diff          Show pending actions without applying them

Configuration is read from DRAFTSYNC_* environment variables.
`)
}

func cmdInit(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: draftsync init <root>")
		return 1
	}

	reg := registry.Open(cfg.StateDir)
	if err := reg.Init(fs.Arg(0)); err != nil {
		logging.L().Error("workspace init failed", zap.Error(err))
		return 1
	}
	fmt.Printf("workspace initialized at %s\n", reg.Root())
	return 0
}

// buildEngine wires the registry, remote client, and engine from config.
func buildEngine(cfg *config.Config, alg codec.Algorithm) (*engine.Engine, *registry.Registry, error) {
	reg := registry.Open(cfg.StateDir)
	if err := reg.Load(); err != nil {
		return nil, nil, err
	}

	client := remote.New(remote.Config{
		BaseURL:   cfg.ServerURL,
		AuthToken: authToken(cfg),
		Codec:     alg,
		RetryConfig: retry.Config{
			MaxAttempts: cfg.RetryMaxAttempts,
			InitialWait: cfg.RetryInitialWait,
			MaxWait:     cfg.RetryMaxWait,
			Multiplier:  2.0,
			Jitter:      0.1,
		},
		Logger: logging.L(),
	})
	return engine.New(reg, client, logging.L()), reg, nil
}

// authToken prefers the environment token, falling back to the saved
// token file.
func authToken(cfg *config.Config) string {
	if cfg.AuthToken != "" {
		return cfg.AuthToken
	}
	tf, err := remote.LoadToken(cfg.StateDir)
	if err != nil {
		return ""
	}
	if tf.IsExpired(0) {
		logging.L().Warn("saved token is expired")
	}
	return tf.Token
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdSync(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "resolve but apply nothing")
	twoWay := fs.Bool("two-way", false, "push local changes as well as pulling")
	chats := fs.Bool("chats", false, "mirror conversation threads")
	strategyName := fs.String("strategy", cfg.ConflictStrategy, "conflict strategy: remote-wins, local-wins, newer, prompt")
	pruneRemote := fs.Bool("prune-remote", cfg.PruneRemote, "propagate local deletions to the remote store")
	pruneLocal := fs.Bool("prune-local", cfg.PruneLocal, "propagate remote deletions locally")
	sequential := fs.Bool("sequential", false, "sync projects one at a time")
	workers := fs.Int("workers", cfg.Workers, "concurrent project syncs")
	codecName := fs.String("codec", cfg.CodecAlgorithm, "transfer codec: none, gzip, zstd")
	jsonOut := fs.Bool("json", false, "write the report as JSON")
	fs.Parse(args)

	strategy, err := resolve.ParseStrategy(*strategyName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	alg, err := codec.ParseAlgorithm(*codecName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	eng, _, err := buildEngine(cfg, alg)
	if err != nil {
		logging.L().Error("workspace not ready", zap.Error(err))
		return 1
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logging.L().Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := eng.SyncAll(ctx, engine.Options{
		DryRun:         *dryRun,
		Bidirectional:  *twoWay,
		IncludeChats:   *chats,
		Strategy:       strategy,
		PruneRemote:    *pruneRemote,
		PruneLocal:     *pruneLocal,
		Sequential:     *sequential,
		Workers:        *workers,
		ProjectTimeout: cfg.ProjectTimeout,
	})
	if err != nil {
		logging.L().Error("workspace sync failed", zap.Error(err))
		if report == nil {
			return 1
		}
	}

	if *jsonOut {
		json.NewEncoder(os.Stdout).Encode(report)
	} else {
		printReport(report, *dryRun)
	}

	switch report.Outcome() {
	case models.OutcomeSuccess:
		return 0
	case models.OutcomePartial:
		return 2
	default:
		return 1
	}
}

func printReport(report *models.WorkspaceSyncReport, dryRun bool) {
	for i := range report.Results {
		r := &report.Results[i]
		name := r.Project.LocalFolder
		if name == "" {
			name = r.Project.DisplayName
		}
		if !r.OK() {
			fmt.Printf("%-30s FAILED: %s\n", name, r.Fatal)
			continue
		}
		if dryRun {
			fmt.Printf("%-30s %d pending\n", name, len(r.Pending))
			for _, d := range r.Pending {
				fmt.Printf("  %-14s %s\n", d.Action, d.RelativePath)
			}
			continue
		}
		fmt.Printf("%-30s up:%d down:%d del:%d skip:%d conflicts:%d errors:%d (%s)\n",
			name, r.Uploaded, r.Downloaded, r.Deleted, r.Skipped,
			r.ConflictsResolved, len(r.Errors), r.Duration.Round(time.Millisecond))
		for _, e := range r.Errors {
			fmt.Printf("  ! %s %s: %s\n", e.Op, e.Path, e.Message)
		}
	}
	fmt.Printf("%d project(s), %d succeeded, %d failed in %s\n",
		len(report.Results), report.Succeeded(), report.Failed(),
		report.Duration.Round(time.Millisecond))
}

func cmdStatus(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "write status as JSON")
	fs.Parse(args)

	eng, _, err := buildEngine(cfg, codec.None)
	if err != nil {
		logging.L().Error("workspace not ready", zap.Error(err))
		return 1
	}
	st, err := eng.Status()
	if err != nil {
		logging.L().Error("status failed", zap.Error(err))
		return 1
	}

	if *jsonOut {
		json.NewEncoder(os.Stdout).Encode(st)
		return 0
	}
	fmt.Printf("workspace: %s\n", st.Root)
	if st.LastSync != "" {
		fmt.Printf("last sync: %s\n", st.LastSync)
	} else {
		fmt.Println("last sync: never")
	}
	for _, p := range st.Projects {
		fmt.Printf("  %-30s %s\n", p.Folder, p.ID)
	}
	for _, o := range st.Orphans {
		fmt.Printf("  %-30s (untracked)\n", o)
	}
	return 0
}

func cmdDiff(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	detailed := fs.Bool("detailed", false, "include unchanged files")
	twoWay := fs.Bool("two-way", false, "consider local changes as pushes")
	jsonOut := fs.Bool("json", false, "write the diff as JSON")
	fs.Parse(args)

	eng, _, err := buildEngine(cfg, codec.None)
	if err != nil {
		logging.L().Error("workspace not ready", zap.Error(err))
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	diffs, err := eng.DiffWorkspace(ctx, engine.Options{Bidirectional: *twoWay}, *detailed)
	if err != nil {
		logging.L().Error("diff failed", zap.Error(err))
		return 1
	}

	if *jsonOut {
		json.NewEncoder(os.Stdout).Encode(diffs)
		return 0
	}
	for _, pd := range diffs {
		name := pd.Project.LocalFolder
		if name == "" {
			name = pd.Project.DisplayName
		}
		if pd.Fatal != "" {
			fmt.Printf("%s: FAILED: %s\n", name, pd.Fatal)
			continue
		}
		fmt.Printf("%s:\n", name)
		for _, en := range pd.Entries {
			fmt.Printf("  %-16s %s\n", en.Classification, en.RelativePath)
		}
		for _, d := range pd.Pending {
			fmt.Printf("  -> %-14s %s\n", d.Action, d.RelativePath)
		}
		if len(pd.Entries) == 0 && len(pd.Pending) == 0 {
			fmt.Println("  up to date")
		}
	}
	return 0
}
