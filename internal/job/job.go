package job

import (
	"errors"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	yaml "gopkg.in/yaml.v3"
)

type ErrNoSuchJob struct {
	msg string
}

func (e *ErrNoSuchJob) Error() string {
	return e.msg
}

// Job describes which parts of the sync root take part in a sync.
type Job struct {
	Name string

	// gitignore style lines, on top of the built in defaults
	Ignore []string `yaml:"ignore"`

	// doublestar globs; when set, only matching paths are synced
	Only []string `yaml:"only"`

	IncludeTopDirs []string `yaml:"include_top_dirs"`
	ExcludeTopDirs []string `yaml:"exclude_top_dirs"`

	IncludeExtensions []string `yaml:"include_extensions"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`

	SkipDirs     []string `yaml:"skip_dirs"`
	SkipDirItems []string `yaml:"skip_dir_items"`
}

// Default is the job used when no job file is given.
func Default() *Job {
	return &Job{Name: "default"}
}

// Load reads a job from a yaml file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ErrNoSuchJob{
				msg: fmt.Sprintf("No such job file: %s", path),
			}
		}
		return nil, err
	}

	var job Job
	err = yaml.Unmarshal(data, &job)
	if err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}

	if job.Name == "" {
		job.Name = path
	}

	for _, pattern := range job.Only {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("job file %s: invalid pattern in 'only': %q", path, pattern)
		}
	}

	return &job, nil
}
