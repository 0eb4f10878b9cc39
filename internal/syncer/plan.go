package syncer

import (
	"sort"

	"github.com/studio1767/filesync/internal/fingerprint"
)

// ActionKind is the decision taken for one path.
type ActionKind int

const (
	Upload ActionKind = iota
	Skip
	Delete
)

func (k ActionKind) String() string {
	switch k {
	case Upload:
		return "upload"
	case Skip:
		return "skip"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// SkipReason says why a Skip needs no work.
type SkipReason int

const (
	SkipUnchanged SkipReason = iota
	SkipRemoteMatch
	SkipRejected
)

func (r SkipReason) String() string {
	switch r {
	case SkipUnchanged:
		return "unchanged"
	case SkipRemoteMatch:
		return "already remote"
	case SkipRejected:
		return "unsupported"
	}
	return "unknown"
}

type Action struct {
	Kind    ActionKind
	RelPath string
	Record  fingerprint.FileRecord

	// Delete: the object to remove. Skip with SkipRemoteMatch: the remote
	// object being adopted.
	RemoteID string

	// Upload: the object the new upload replaces, if any.
	Supersedes string

	Reason SkipReason
}

type TooLarge struct {
	RelPath string
	Size    int64
}

// Failure is a per path problem that did not stop the run.
type Failure struct {
	RelPath string
	Op      string
	Err     error
}

// Plan is the full set of decisions for one run.
type Plan struct {
	Actions  []Action
	TooLarge []TooLarge
	Failed   []Failure

	// stale manifest entries with nothing to delete remotely
	forget []string

	// remote ids that paths surviving this run still point at
	shared map[string]bool
}

func (p *Plan) count(kind ActionKind) int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func (p *Plan) Uploads() int {
	return p.count(Upload)
}

func (p *Plan) Skips() int {
	return p.count(Skip)
}

func (p *Plan) Deletes() int {
	return p.count(Delete)
}

// Get returns the action for a path. Deletes are keyed by the path of
// the manifest entry they came from.
func (p *Plan) Get(relpath string) (Action, bool) {
	for _, a := range p.Actions {
		if a.RelPath == relpath {
			return a, true
		}
	}
	return Action{}, false
}

func (p *Plan) sort() {
	sort.Slice(p.Actions, func(i, j int) bool {
		if p.Actions[i].Kind != p.Actions[j].Kind {
			return p.Actions[i].Kind < p.Actions[j].Kind
		}
		return p.Actions[i].RelPath < p.Actions[j].RelPath
	})
	sort.Slice(p.TooLarge, func(i, j int) bool {
		return p.TooLarge[i].RelPath < p.TooLarge[j].RelPath
	})
	sort.Slice(p.Failed, func(i, j int) bool {
		return p.Failed[i].RelPath < p.Failed[j].RelPath
	})
}
