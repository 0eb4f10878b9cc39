package job_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/filesync/internal/job"
)

func TestLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yml")
	data := `
name: research
ignore:
  - "*.bak"
only:
  - "reports/**/*.md"
exclude_extensions: [".tmp"]
skip_dirs: [node_modules]
skip_dir_items: [.nosync]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	j, err := job.Load(path)
	require.NoError(t, err)
	require.Equal(t, "research", j.Name)
	require.Equal(t, []string{"*.bak"}, j.Ignore)
	require.Equal(t, []string{"reports/**/*.md"}, j.Only)
	require.Equal(t, []string{".tmp"}, j.ExcludeExtensions)
	require.Equal(t, []string{"node_modules"}, j.SkipDirs)
	require.Equal(t, []string{".nosync"}, j.SkipDirItems)
}

func TestMissingJob(t *testing.T) {
	_, err := job.Load(filepath.Join(t.TempDir(), "nope.yml"))

	var nojob *job.ErrNoSuchJob
	require.True(t, errors.As(err, &nojob))
}

func TestInvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yml")
	require.NoError(t, os.WriteFile(path, []byte("only: [\"a/[b\"]\n"), 0644))

	_, err := job.Load(path)
	require.Error(t, err)
}
