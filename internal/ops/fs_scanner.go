package ops

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"

	"github.com/studio1767/filesync/internal/fingerprint"
	"github.com/studio1767/filesync/internal/job"
)

// NewFsScanner walks the tree under source and emits one entry for every
// regular file. Directory level rules from the job are applied here, so
// skipped directories are never descended into. Files listed in skip
// (absolute paths) are never emitted. The walk runs in parallel so entries
// arrive in no particular order.
func NewFsScanner(ctx context.Context, source string, job *job.Job, skip []string) <-chan *EntryInfo {

	// convert the include/exclude lists to maps for easier lookup
	include_top_dirs := make(map[string]bool)
	exclude_top_dirs := make(map[string]bool)
	skip_dirs := make(map[string]bool)
	skip_files := make(map[string]bool)

	for _, dir := range job.IncludeTopDirs {
		include_top_dirs[dir] = true
	}
	for _, dir := range job.ExcludeTopDirs {
		exclude_top_dirs[dir] = true
	}
	for _, dir := range job.SkipDirs {
		skip_dirs[dir] = true
	}
	for _, file := range skip {
		skip_files[filepath.Clean(file)] = true
	}

	out := make(chan *EntryInfo, 10)
	sc := fsScanner{
		ctx:              ctx,
		out:              out,
		source:           filepath.Clean(source),
		include_top_dirs: include_top_dirs,
		exclude_top_dirs: exclude_top_dirs,
		skip_dirs:        skip_dirs,
		skip_dir_items:   job.SkipDirItems,
		skip_files:       skip_files,
	}
	go func() {
		defer close(sc.out)
		sc.run()
	}()

	return out
}

type fsScanner struct {
	ctx              context.Context
	out              chan<- *EntryInfo
	source           string
	include_top_dirs map[string]bool
	exclude_top_dirs map[string]bool
	skip_dirs        map[string]bool
	skip_dir_items   []string
	skip_files       map[string]bool
}

func (sc *fsScanner) run() {
	conf := fastwalk.Config{
		Follow: false,
	}
	fastwalk.Walk(&conf, sc.source, sc.visit)
}

func (sc *fsScanner) visit(path string, entry fs.DirEntry, err error) error {
	// check for context done
	select {
	case <-sc.ctx.Done():
		return sc.ctx.Err()
	default:
	}

	rpath, rerr := filepath.Rel(sc.source, path)
	if rerr != nil {
		return nil
	}
	rpath = filepath.ToSlash(rpath)

	if err != nil {
		// report and keep walking everything else
		if rpath != "." {
			send(sc.ctx, sc.out, &EntryInfo{Status: StatusFailed, RelPath: rpath, Err: err})
		}
		if entry != nil && entry.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	}

	if entry.IsDir() {
		if rpath == "." {
			return nil
		}
		if sc.skipDir(path, rpath, entry.Name()) {
			return fastwalk.SkipDir
		}
		return nil
	}

	if !entry.Type().IsRegular() {
		return nil
	}
	if sc.skip_files[filepath.Clean(path)] {
		return nil
	}

	info, err := entry.Info()
	if err != nil {
		send(sc.ctx, sc.out, &EntryInfo{Status: StatusFailed, RelPath: rpath, Err: err})
		return nil
	}

	send(sc.ctx, sc.out, &EntryInfo{
		Status:  StatusCandidate,
		RelPath: rpath,
		RawSize: info.Size(),
		ModTime: fingerprint.ModTimeSeconds(info.ModTime()),
	})

	return nil
}

func (sc *fsScanner) skipDir(path, rpath, name string) bool {
	// if we're at the top level, check the top level include/exclude lists
	if !strings.Contains(rpath, "/") {
		if len(sc.include_top_dirs) > 0 && !sc.include_top_dirs[name] {
			return true
		}
		if sc.exclude_top_dirs[name] {
			return true
		}
	}

	// check skip_dirs at all levels
	if sc.skip_dirs[name] {
		return true
	}

	// a marker item inside the directory excludes all of it
	for _, skip := range sc.skip_dir_items {
		if _, err := os.Stat(filepath.Join(path, skip)); err == nil {
			return true
		}
	}

	return false
}
