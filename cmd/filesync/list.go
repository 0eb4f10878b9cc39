package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studio1767/filesync/internal/manifest"
)

func newListCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the files recorded in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path := v.GetString("manifest")
			if path == "" {
				root, err := filepath.Abs(v.GetString("root"))
				if err != nil {
					return &setupError{err: err}
				}
				path = manifest.DefaultPath(root)
			}

			m, err := manifest.Load(path)
			var corrupt *manifest.ManifestCorruptError
			if err != nil && !errors.As(err, &corrupt) {
				return &setupError{err: err}
			}
			if corrupt != nil {
				return &setupError{err: corrupt}
			}

			listManifest(stdout, m, v.GetBool("verbose"))
			return nil
		},
	}
}

func listManifest(w io.Writer, m *manifest.Manifest, verbose bool) {
	rejected := 0
	var total int64

	for _, relpath := range m.Paths() {
		e, _ := m.Get(relpath)
		total += e.Fingerprint.Size

		if e.Rejected != "" {
			rejected++
			fmt.Fprintf(w, "- %s (%s) rejected: %s\n", relpath, humanize.IBytes(uint64(e.Fingerprint.Size)), e.Rejected)
			continue
		}

		fmt.Fprintf(w, "- %s (%s) %s", relpath, humanize.IBytes(uint64(e.Fingerprint.Size)), e.RemoteID)
		if verbose {
			fmt.Fprintf(w, " %s %s", e.Destination, humanize.Time(e.UploadedAt))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Manifest: %s\n", m.Path())
	fmt.Fprintf(w, "   files: %s (%s)\n", humanize.Comma(int64(m.Len())), humanize.IBytes(uint64(total)))
	fmt.Fprintf(w, "rejected: %s\n", humanize.Comma(int64(rejected)))
}
