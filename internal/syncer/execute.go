package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studio1767/filesync/internal/manifest"
	"github.com/studio1767/filesync/internal/remote"
)

// Summary is the outcome of executing a plan.
type Summary struct {
	Uploaded      int
	UploadedBytes int64
	Skipped       int
	Adopted       int
	Rejected      int
	Deleted       int
	Replaced      int
	TooLarge      int
	Failed        []Failure
	Cancelled     bool
	Elapsed       time.Duration
}

// OK is true when nothing is left for a later run to retry.
func (sm *Summary) OK() bool {
	return len(sm.Failed) == 0 && !sm.Cancelled
}

type executor struct {
	s       *Syncer
	dest    string
	shared  map[string]bool
	commits atomic.Int64
	saveMu  sync.Mutex

	mu      sync.Mutex
	summary *Summary
}

// Execute carries out the uploads and deletes of plan on a bounded pool.
// Once ctx is cancelled no new work is started; uploads already in flight
// run to completion so an acknowledged object is always committed. The
// manifest is saved every few commits and always before returning.
func (s *Syncer) Execute(ctx context.Context, plan *Plan) (*Summary, error) {
	start := time.Now()

	ex := executor{
		s:      s,
		dest:   s.opts.Destination.String(),
		shared: plan.shared,
		summary: &Summary{
			TooLarge: len(plan.TooLarge),
			Failed:   append([]Failure(nil), plan.Failed...),
		},
	}

	for _, a := range plan.Actions {
		if a.Kind != Skip {
			continue
		}
		ex.summary.Skipped++

		switch a.Reason {
		case SkipRemoteMatch:
			ex.adopt(a)
		case SkipRejected:
			ex.summary.Rejected++
		}
	}
	for _, relpath := range plan.forget {
		s.manifest.Remove(relpath)
	}

	// in flight calls outlive a cancel
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.opts.MaxWorkers)

	for _, a := range plan.Actions {
		if a.Kind == Skip {
			continue
		}
		if ctx.Err() != nil {
			ex.summary.Cancelled = true
			break
		}

		g.Go(func() error {
			// the slot may only free up after a cancel
			if ctx.Err() != nil {
				return nil
			}
			switch a.Kind {
			case Upload:
				ex.upload(work, a)
			case Delete:
				ex.delete(work, a)
			}
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		ex.summary.Cancelled = true
	}
	ex.summary.Elapsed = time.Since(start)

	if err := ex.save(); err != nil {
		return ex.summary, err
	}
	return ex.summary, nil
}

func (ex *executor) entry(a Action) manifest.Entry {
	return manifest.Entry{
		RelPath:     a.RelPath,
		Fingerprint: a.Record,
		Filename:    filepath.Base(filepath.FromSlash(a.RelPath)),
		Destination: ex.dest,
	}
}

// adopt records a remote object found by name and size as this path's
// upload.
func (ex *executor) adopt(a Action) {
	e := ex.entry(a)
	e.RemoteID = a.RemoteID
	e.UploadedAt = time.Now().UTC()
	ex.s.manifest.Put(e)

	ex.summary.Adopted++
	ex.s.log.Info("adopted remote object", "path", a.RelPath, "id", a.RemoteID)
	ex.commit()
}

func (ex *executor) upload(ctx context.Context, a Action) {
	s := ex.s
	fpath := filepath.Join(s.opts.Root, filepath.FromSlash(a.RelPath))
	name := filepath.Base(fpath)

	obj, err := s.store.Upload(ctx, fpath, name)

	var rejected *remote.RejectedError
	if errors.As(err, &rejected) {
		e := ex.entry(a)
		e.Rejected = rejected.Reason
		s.manifest.Put(e)

		ex.mu.Lock()
		ex.summary.Rejected++
		ex.mu.Unlock()

		s.log.Warn("remote rejected file", "path", a.RelPath, "reason", rejected.Reason)
		ex.commit()
		ex.replace(ctx, a)
		return
	}
	if err != nil {
		ex.fail(a.RelPath, "upload", err)
		return
	}

	e := ex.entry(a)
	e.RemoteID = obj.ID
	e.UploadedAt = time.Now().UTC()
	s.manifest.Put(e)

	ex.mu.Lock()
	ex.summary.Uploaded++
	ex.summary.UploadedBytes += a.Record.Size
	ex.mu.Unlock()

	s.log.Info("uploaded", "path", a.RelPath, "id", obj.ID, "bytes", a.Record.Size)
	ex.commit()

	if obj.ID != a.Supersedes {
		ex.replace(ctx, a)
	}
}

// replace removes the object an upload superseded, in cleanup mode only.
// An object another path still points at stays.
func (ex *executor) replace(ctx context.Context, a Action) {
	if !ex.s.opts.Cleanup || a.Supersedes == "" {
		return
	}
	if ex.shared[a.Supersedes] {
		ex.s.log.Debug("superseded object still in use", "path", a.RelPath, "id", a.Supersedes)
		return
	}

	err := ex.s.store.Delete(ctx, a.Supersedes)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		ex.fail(a.RelPath, "delete superseded", err)
		return
	}

	ex.mu.Lock()
	ex.summary.Replaced++
	ex.mu.Unlock()

	ex.s.log.Debug("deleted superseded object", "path", a.RelPath, "id", a.Supersedes)
}

func (ex *executor) delete(ctx context.Context, a Action) {
	s := ex.s

	err := s.store.Delete(ctx, a.RemoteID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		ex.fail(a.RelPath, "delete", err)
		return
	}

	if e, ok := s.manifest.Get(a.RelPath); ok && e.RemoteID == a.RemoteID {
		s.manifest.Remove(a.RelPath)
	}

	ex.mu.Lock()
	ex.summary.Deleted++
	ex.mu.Unlock()

	s.log.Info("deleted", "path", a.RelPath, "id", a.RemoteID)
	ex.commit()
}

func (ex *executor) fail(relpath, op string, err error) {
	ex.mu.Lock()
	ex.summary.Failed = append(ex.summary.Failed, Failure{RelPath: relpath, Op: op, Err: err})
	ex.mu.Unlock()

	ex.s.log.Error("failed", "path", relpath, "op", op, "error", err)
}

func (ex *executor) commit() {
	n := ex.commits.Add(1)
	if n%int64(ex.s.opts.CheckpointEvery) != 0 {
		return
	}
	if err := ex.save(); err != nil {
		ex.s.log.Warn("manifest checkpoint failed", "error", err)
	}
}

func (ex *executor) save() error {
	ex.saveMu.Lock()
	defer ex.saveMu.Unlock()

	return ex.s.manifest.Save()
}
