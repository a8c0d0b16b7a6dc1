package scanengine

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/xanadossd/avscan-core/internal/types"
)

// EnumerateConfig bounds one enumeration pass (spec §4.6 "Enumeration").
type EnumerateConfig struct {
	Depth         int // 0 = unlimited
	IncludeHidden bool
	Exclusions    []string
	Filter        types.FileKindFilter
	MaxFiles      int64
	MemoryBudgetMB int64
}

const cancellationPollEvery = 100

// enumerate walks root (a file or directory) collecting File Tasks,
// sequentially — the Scan Engine is the single-threaded scheduler (spec
// §5); parallelism happens later, in the Worker Pool. Directory-walk
// shape (batched ReadDir, exclusion globs against the base name, skipping
// non-regular entries) is carried over from the teacher's
// internal/scanner.Scanner.listDirectory/processEntry, stripped of its
// fan-out concurrency.
func enumerate(ctx context.Context, root string, cfg EnumerateConfig) ([]*types.FileTask, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}

	var tasks []*types.FileTask
	var cumulativeBytes int64
	budgetBytes := cfg.MemoryBudgetMB * 1024 * 1024
	var budgetExceeded bool
	var seen int64

	var walk func(path string, depth int) error
	walk = func(path string, depth int) error {
		if budgetExceeded {
			return nil
		}
		if cfg.MaxFiles > 0 && int64(len(tasks)) >= cfg.MaxFiles {
			return nil
		}

		seen++
		if seen%cancellationPollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		name := filepath.Base(path)
		if !cfg.IncludeHidden && strings.HasPrefix(name, ".") && path != root {
			return nil
		}
		if matchesExclusion(name, path, cfg.Exclusions) {
			return nil
		}
		if cfg.Depth > 0 && depth > cfg.Depth {
			return nil
		}

		lst, err := os.Lstat(path)
		if err != nil {
			return nil // vanished between discovery and stat; skip, not fatal
		}

		if lst.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil // permission denied etc.: skip this subtree
			}
			for _, e := range entries {
				if err := walk(filepath.Join(path, e.Name()), depth+1); err != nil {
					return err
				}
			}
			return nil
		}

		if lst.Mode()&os.ModeSymlink != 0 {
			// Symlinks are collected as tasks; the per-file pipeline's
			// pre-scan triage (spec §4.6 step 3) decides whether to skip.
		} else if !lst.Mode().IsRegular() {
			return nil
		}

		kind := classifyFileKind(path)
		if !cfg.Filter.Matches(kind) {
			return nil
		}

		if budgetBytes > 0 && cumulativeBytes+lst.Size() > budgetBytes {
			debug.FreeOSMemory()
			budgetExceeded = true
			return nil
		}
		cumulativeBytes += lst.Size()

		task := &types.FileTask{
			Path:     path,
			Priority: defaultPriority(path, kind),
		}
		tasks = append(tasks, task)
		return nil
	}

	if info.IsDir() {
		if err := walk(root, 0); err != nil {
			return tasks, err
		}
	} else {
		if err := walk(root, 0); err != nil {
			return tasks, err
		}
	}
	return tasks, nil
}

// matchesExclusion checks a glob pattern against both the entry's base
// name (the teacher's shouldExclude behavior) and its full path, so
// path-rooted patterns like "/proc/*" also match.
func matchesExclusion(name, path string, patterns []string) bool {
	for _, p := range patterns {
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
		if matched, _ := filepath.Match(p, path); matched {
			return true
		}
	}
	return false
}
