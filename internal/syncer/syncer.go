// Package syncer diffs a local tree against the manifest of the previous
// run and brings the remote store up to date.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/studio1767/filesync/internal/job"
	"github.com/studio1767/filesync/internal/manifest"
	"github.com/studio1767/filesync/internal/ops"
	"github.com/studio1767/filesync/internal/remote"
	"github.com/studio1767/filesync/internal/remoteindex"
)

// DefaultCheckpointEvery is how many commits may pile up before the
// manifest is written to disk mid run.
const DefaultCheckpointEvery = 25

type Options struct {
	Root        string
	Job         *job.Job
	Destination remote.Destination
	MaxWorkers  int
	MaxBytes    int64
	DryRun      bool

	// Cleanup deletes remote objects of removed paths and of superseded
	// versions.
	Cleanup bool

	CheckpointEvery int
}

type Syncer struct {
	opts     Options
	store    remote.Store
	manifest *manifest.Manifest
	log      *slog.Logger
}

func New(opts Options, store remote.Store, m *manifest.Manifest, log *slog.Logger) *Syncer {
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	if opts.Job == nil {
		opts.Job = job.Default()
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.CheckpointEvery < 1 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		opts:     opts,
		store:    store,
		manifest: m,
		log:      log,
	}
}

// Run plans and, unless this is a dry run, executes. The manifest lock is
// held for the whole of a real run. When the caller does not already hold
// it, Run takes it and then rereads the manifest, so the plan starts from
// whatever an earlier run saved.
func (s *Syncer) Run(ctx context.Context) (*Plan, *Summary, error) {
	if !s.opts.DryRun && !s.manifest.Locked() {
		if err := s.manifest.Lock(); err != nil {
			return nil, nil, err
		}
		defer func() {
			if err := s.manifest.Unlock(); err != nil {
				s.log.Warn("failed to release manifest lock", "error", err)
			}
		}()

		var corrupt *manifest.ManifestCorruptError
		if err := s.manifest.Reload(); errors.As(err, &corrupt) {
			s.log.Warn("manifest was corrupt, starting from an empty one", "path", corrupt.Path, "backup", corrupt.Backup, "error", corrupt.Err)
		} else if err != nil {
			return nil, nil, err
		}
	}

	plan, err := s.Plan(ctx)
	if err != nil {
		return nil, nil, err
	}
	if s.opts.DryRun {
		return plan, nil, nil
	}

	summary, err := s.Execute(ctx, plan)
	return plan, summary, err
}

type scanResult struct {
	candidates []*ops.EntryInfo
	tooLarge   []TooLarge
	failed     []Failure
	seen       map[string]bool
}

// scan runs the enumeration chain over the root.
func (s *Syncer) scan(ctx context.Context) (*scanResult, error) {
	j := s.opts.Job

	// the manifest and its companions never get synced, wherever they live
	mpath, _ := filepath.Abs(s.manifest.Path())
	skip := []string{mpath, mpath + ".lock", mpath + ".bak"}

	ch := ops.NewFsScanner(ctx, s.opts.Root, j, skip)
	ch = ops.NewPathFilter(ctx, ch, j.Ignore, j.Only)
	if len(j.IncludeExtensions) > 0 {
		ch = ops.NewFileExtensionFilter(ctx, ch, j.IncludeExtensions, true)
	}
	if len(j.ExcludeExtensions) > 0 {
		ch = ops.NewFileExtensionFilter(ctx, ch, j.ExcludeExtensions, false)
	}
	if s.opts.MaxBytes > 0 {
		ch = ops.NewSizeLimiter(ctx, ch, s.opts.MaxBytes)
	}
	ch = ops.NewHashGenerator(ctx, ch, s.opts.Root, s.opts.MaxWorkers)

	res := scanResult{seen: make(map[string]bool)}
	for info := range ch {
		res.seen[info.RelPath] = true

		switch info.Status {
		case ops.StatusCandidate:
			res.candidates = append(res.candidates, info)
		case ops.StatusTooLarge:
			res.tooLarge = append(res.tooLarge, TooLarge{RelPath: info.RelPath, Size: info.RawSize})
		case ops.StatusFailed:
			res.failed = append(res.failed, Failure{RelPath: info.RelPath, Op: "read", Err: info.Err})
		}
	}

	// the chain closes early on cancel, so the result is partial
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &res, nil
}

// Plan walks the root and decides an action for every path. It never
// touches the manifest and, in a dry run, makes no remote calls.
func (s *Syncer) Plan(ctx context.Context) (*Plan, error) {
	res, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	dest := s.opts.Destination.String()
	plan := Plan{
		TooLarge: res.tooLarge,
		Failed:   res.failed,
	}

	idx := s.remoteIndex(ctx, res.candidates)

	for _, info := range res.candidates {
		plan.Actions = append(plan.Actions, s.decide(info, dest, idx))
	}

	if s.opts.Cleanup {
		s.planRemovals(&plan, res.seen, dest)
		s.keepShared(&plan)
	}

	plan.sort()
	return &plan, nil
}

func (s *Syncer) decide(info *ops.EntryInfo, dest string, idx *remoteindex.Index) Action {
	record := info.Record
	action := Action{Kind: Upload, RelPath: info.RelPath, Record: record}

	entry, ok := s.manifest.Get(info.RelPath)
	if !ok || entry.Destination != dest {
		// fall back to what the remote already has
		if match, found := idx.Lookup(path.Base(info.RelPath), record.Size); found {
			action.Kind = Skip
			action.Reason = SkipRemoteMatch
			action.RemoteID = match.ID
		}
		return action
	}

	unchanged := entry.Fingerprint.Equal(record)
	switch {
	case unchanged && entry.Rejected != "":
		action.Kind = Skip
		action.Reason = SkipRejected
	case unchanged && entry.RemoteID != "":
		action.Kind = Skip
		action.Reason = SkipUnchanged
		action.RemoteID = entry.RemoteID
	default:
		action.Supersedes = entry.RemoteID
	}
	return action
}

// remoteIndex is only worth building for real Files API runs where some
// path has no entry to go by.
func (s *Syncer) remoteIndex(ctx context.Context, candidates []*ops.EntryInfo) *remoteindex.Index {
	if s.opts.DryRun || s.opts.Destination.Kind != remote.FilesAPI {
		return nil
	}
	lister, ok := s.store.(remote.Lister)
	if !ok {
		return nil
	}

	dest := s.opts.Destination.String()
	needed := false
	for _, info := range candidates {
		entry, ok := s.manifest.Get(info.RelPath)
		if !ok || entry.Destination != dest {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	return remoteindex.Build(ctx, lister, s.log)
}

// planRemovals finds manifest entries whose file has gone from the tree.
// Paths that still exist but were filtered out of the walk are left
// alone, as are entries belonging to another destination.
func (s *Syncer) planRemovals(plan *Plan, seen map[string]bool, dest string) {
	for _, relpath := range s.manifest.Paths() {
		if seen[relpath] {
			continue
		}
		entry, ok := s.manifest.Get(relpath)
		if !ok || entry.Destination != dest {
			continue
		}

		_, err := os.Lstat(filepath.Join(s.opts.Root, filepath.FromSlash(relpath)))
		if !errors.Is(err, os.ErrNotExist) {
			continue
		}

		if entry.RemoteID == "" {
			plan.forget = append(plan.forget, relpath)
			continue
		}
		plan.Actions = append(plan.Actions, Action{
			Kind:     Delete,
			RelPath:  relpath,
			RemoteID: entry.RemoteID,
		})
	}
}

// keepShared protects objects that more than one path points at, as after
// a move or a copy was adopted by name and size. A stale entry whose object
// is still used elsewhere is only forgotten, and a superseded object that
// another path still uses is left in place.
func (s *Syncer) keepShared(plan *Plan) {
	handled := make(map[string]bool)
	live := make(map[string]bool)

	for _, a := range plan.Actions {
		handled[a.RelPath] = true
		if a.Kind == Skip && a.RemoteID != "" {
			live[a.RemoteID] = true
		}
	}
	for _, relpath := range plan.forget {
		handled[relpath] = true
	}

	// entries no action touches keep their object: filtered paths, paths
	// that failed to read, other destinations
	for _, relpath := range s.manifest.Paths() {
		if handled[relpath] {
			continue
		}
		if entry, ok := s.manifest.Get(relpath); ok && entry.RemoteID != "" {
			live[entry.RemoteID] = true
		}
	}

	actions := plan.Actions[:0]
	for _, a := range plan.Actions {
		if a.Kind == Delete && live[a.RemoteID] {
			s.log.Debug("object still in use, forgetting entry only", "path", a.RelPath, "id", a.RemoteID)
			plan.forget = append(plan.forget, a.RelPath)
			continue
		}
		actions = append(actions, a)
	}
	plan.Actions = actions
	plan.shared = live
}
