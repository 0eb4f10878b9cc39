package syncer

import (
	"fmt"
	"io"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// PrintPlan writes the decisions of a plan. Skips are only listed when
// verbose.
func PrintPlan(w io.Writer, plan *Plan, verbose bool) {
	for _, a := range plan.Actions {
		switch a.Kind {
		case Upload:
			if a.Supersedes != "" {
				fmt.Fprintf(w, "-   upload: %s (%s, replaces %s)\n", a.RelPath, humanize.IBytes(uint64(a.Record.Size)), a.Supersedes)
			} else {
				fmt.Fprintf(w, "-   upload: %s (%s)\n", a.RelPath, humanize.IBytes(uint64(a.Record.Size)))
			}
		case Skip:
			if verbose || a.Reason != SkipUnchanged {
				fmt.Fprintf(w, "-     skip: %s (%s)\n", a.RelPath, a.Reason)
			}
		case Delete:
			fmt.Fprintf(w, "-   delete: %s (%s)\n", a.RelPath, a.RemoteID)
		}
	}
	for _, tl := range plan.TooLarge {
		fmt.Fprintf(w, "- too large: %s (%s)\n", tl.RelPath, humanize.IBytes(uint64(tl.Size)))
	}
	for _, f := range plan.Failed {
		fmt.Fprintf(w, "-   failed: %s: %s\n", f.RelPath, f.Err)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Plan\n")
	fmt.Fprintf(w, "      upload: %s\n", humanize.Comma(int64(plan.Uploads())))
	fmt.Fprintf(w, "        skip: %s\n", humanize.Comma(int64(plan.Skips())))
	fmt.Fprintf(w, "      delete: %s\n", humanize.Comma(int64(plan.Deletes())))
	fmt.Fprintf(w, "   too large: %s\n", humanize.Comma(int64(len(plan.TooLarge))))
	fmt.Fprintf(w, " read failed: %s\n", humanize.Comma(int64(len(plan.Failed))))
	fmt.Fprintln(w)
}

func PrintSummary(w io.Writer, sm *Summary) {
	for _, f := range sm.Failed {
		fmt.Fprintf(w, "-   failed: %s (%s): %s\n", f.RelPath, f.Op, f.Err)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sync Summary\n")
	fmt.Fprintf(w, "    uploaded: %s (%s)\n", humanize.Comma(int64(sm.Uploaded)), humanize.IBytes(uint64(sm.UploadedBytes)))
	fmt.Fprintf(w, "     skipped: %s\n", humanize.Comma(int64(sm.Skipped)))
	fmt.Fprintf(w, "     adopted: %s\n", humanize.Comma(int64(sm.Adopted)))
	fmt.Fprintf(w, " unsupported: %s\n", humanize.Comma(int64(sm.Rejected)))
	fmt.Fprintf(w, "     deleted: %s\n", humanize.Comma(int64(sm.Deleted)))
	fmt.Fprintf(w, "    replaced: %s\n", humanize.Comma(int64(sm.Replaced)))
	fmt.Fprintf(w, "   too large: %s\n", humanize.Comma(int64(sm.TooLarge)))
	fmt.Fprintf(w, "      failed: %s\n", humanize.Comma(int64(len(sm.Failed))))
	if sm.Cancelled {
		fmt.Fprintf(w, "   cancelled: yes\n")
	}
	fmt.Fprintf(w, "     elapsed: %s\n", sm.Elapsed.Round(100*time.Millisecond))
	fmt.Fprintln(w)
}
