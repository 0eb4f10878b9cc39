package ops

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreLines are always applied in front of a job's own rules.
var DefaultIgnoreLines = []string{
	// filesync
	".filesync_manifest.json*",
	// credentials
	".env",
	// vcs and editors
	".git/",
	".svn/",
	".idea/",
	".vscode/",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// NewPathFilter drops entries matching the gitignore style ignore lines.
// If only is not empty, entries must also match at least one of its
// doublestar globs.
func NewPathFilter(ctx context.Context, in <-chan *EntryInfo, ignore []string, only []string) <-chan *EntryInfo {
	lines := make([]string, 0, len(DefaultIgnoreLines)+len(ignore))
	lines = append(lines, DefaultIgnoreLines...)
	lines = append(lines, ignore...)

	out := make(chan *EntryInfo, 10)
	filter := pathFilter{
		ctx:    ctx,
		in:     in,
		out:    out,
		ignore: gitignore.CompileIgnoreLines(lines...),
		only:   only,
	}
	go filter.run()

	return out
}

type pathFilter struct {
	ctx    context.Context
	in     <-chan *EntryInfo
	out    chan<- *EntryInfo
	ignore *gitignore.GitIgnore
	only   []string
}

func (filter *pathFilter) run() {
	defer close(filter.out)

	for {
		select {
		case <-filter.ctx.Done():
			return
		case info, ok := <-filter.in:
			if !ok {
				return
			}
			filter.process(info)
		}
	}
}

func (filter *pathFilter) process(info *EntryInfo) {
	if filter.ignore.MatchesPath(info.RelPath) {
		return
	}

	if info.Status != StatusFailed && len(filter.only) > 0 && !filter.matchesOnly(info.RelPath) {
		return
	}

	send(filter.ctx, filter.out, info)
}

func (filter *pathFilter) matchesOnly(path string) bool {
	for _, pattern := range filter.only {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
