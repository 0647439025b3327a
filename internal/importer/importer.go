package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/claude/liftsync/internal/ingest"
	"github.com/claude/liftsync/internal/ingest/alpha"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	ingest.Result
}

// Importer loads Alpha Progression CSV exports from disk into the workout store.
type Importer struct {
	provider *alpha.Provider
	log      *slog.Logger
	dryRun   bool
	stats    Stats
}

// New creates a new Importer. In dry-run mode files are parsed and counted
// but nothing is saved.
func New(provider *alpha.Provider, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{provider: provider, log: log, dryRun: dryRun}
}

// Import processes path, which is a single export or a directory of *.csv
// exports (read in name order). A file that fails to parse is logged and
// skipped; a failed save aborts the run.
func (imp *Importer) Import(ctx context.Context, path string, userID int) (*Stats, error) {
	files, err := exportFiles(path)
	if err != nil {
		return &imp.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, f, userID); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", filepath.Base(f), err)
		}
	}
	return &imp.stats, nil
}

func exportFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (imp *Importer) importFile(ctx context.Context, path string, userID int) error {
	f, err := os.Open(path)
	if err != nil {
		imp.log.Warn("open failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	sessions, err := alpha.Parse(f, time.Local)
	f.Close()
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}

	if len(sessions) == 0 {
		imp.log.Info("no sessions in export", "file", filepath.Base(path))
		imp.stats.FilesSkipped++
		return nil
	}

	if imp.dryRun {
		imp.stats.FilesProcessed++
		for _, s := range sessions {
			imp.stats.Sessions++
			for _, ex := range s.Exercises {
				imp.stats.Sets += len(ex.Sets)
			}
		}
		return nil
	}

	res, err := imp.provider.Save(ctx, sessions, userID)
	imp.stats.Add(*res)
	if err != nil {
		imp.stats.FilesErrored++
		return err
	}
	imp.stats.FilesProcessed++
	imp.log.Info("imported export",
		"file", filepath.Base(path),
		"sessions", res.Sessions,
		"created", res.Created,
		"updated", res.Updated,
	)
	return nil
}
