package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

// Loader reads job definitions from a directory of TOML and YAML files.
// A malformed or invalid file is skipped with a warning; one bad definition
// must never prevent the rest of the job set from loading.
type Loader struct {
	dir      string
	validate *validator.Validate
	logger   arbor.ILogger
}

// jobFile is the on-disk shape of one definition file. A file may declare a
// single job or a list.
type jobFile struct {
	Job  *models.Job  `toml:"job" yaml:"job"`
	Jobs []models.Job `toml:"jobs" yaml:"jobs"`
}

// NewLoader creates a loader for the given definitions directory.
func NewLoader(dir string, logger arbor.ILogger) *Loader {
	return &Loader{
		dir:      dir,
		validate: validator.New(),
		logger:   logger,
	}
}

// Load reads all definition files and returns jobs sorted by priority.
// Duplicate job ids keep the first occurrence; later duplicates are skipped.
func (l *Loader) Load() ([]models.Job, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read job definitions directory %s: %w", l.dir, err)
	}

	seen := make(map[string]string) // job id -> filename
	var jobs []models.Job

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".toml" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, name)
		fileJobs, err := l.loadFile(path, ext)
		if err != nil {
			l.logger.Warn().
				Err(err).
				Str("file", name).
				Msg("Skipping unreadable job definition file")
			continue
		}

		for _, job := range fileJobs {
			if err := l.validate.Struct(job); err != nil {
				l.logger.Warn().
					Err(err).
					Str("file", name).
					Str("job_id", job.ID).
					Msg("Skipping invalid job definition")
				continue
			}
			if prev, dup := seen[job.ID]; dup {
				l.logger.Warn().
					Str("job_id", job.ID).
					Str("file", name).
					Str("first_seen_in", prev).
					Msg("Skipping duplicate job definition")
				continue
			}
			seen[job.ID] = name
			jobs = append(jobs, job)
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Priority < jobs[j].Priority
	})

	l.logger.Info().
		Int("job_count", len(jobs)).
		Str("dir", l.dir).
		Msg("Job definitions loaded")

	return jobs, nil
}

// loadFile parses one definition file into its declared jobs.
func (l *Loader) loadFile(path, ext string) ([]models.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var file jobFile
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	var jobs []models.Job
	if file.Job != nil {
		jobs = append(jobs, *file.Job)
	}
	jobs = append(jobs, file.Jobs...)

	if len(jobs) == 0 {
		return nil, fmt.Errorf("no job definitions found in file")
	}
	return jobs, nil
}
