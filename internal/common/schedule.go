package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// JobSchedule overrides the interval or enabled flag of one job. Zero values
// keep the environment defaults.
type JobSchedule struct {
	Name     string `yaml:"name"`
	Interval string `yaml:"interval"`
	Enabled  *bool  `yaml:"enabled"`
}

type JobsFile struct {
	Jobs []JobSchedule `yaml:"jobs"`
}

// ResolvedSchedule is a validated override ready to apply.
type ResolvedSchedule struct {
	Interval time.Duration
	Enabled  bool
}

func LoadJobSchedule(jobsFile string) (map[string]ResolvedSchedule, error) {
	var jobsPath string
	if filepath.IsAbs(jobsFile) {
		jobsPath = jobsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		jobsPath = filepath.Join(wd, jobsFile)
	}

	data, err := os.ReadFile(jobsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", jobsFile, err)
	}

	var config JobsFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", jobsFile, err)
	}

	schedules := make(map[string]ResolvedSchedule, len(config.Jobs))
	for i, job := range config.Jobs {
		if job.Name == "" {
			return nil, fmt.Errorf("job at index %d missing name", i)
		}
		if _, dup := schedules[job.Name]; dup {
			return nil, fmt.Errorf("job %s listed twice", job.Name)
		}

		resolved := ResolvedSchedule{Enabled: true}
		if job.Enabled != nil {
			resolved.Enabled = *job.Enabled
		}
		if job.Interval != "" {
			interval, err := time.ParseDuration(job.Interval)
			if err != nil {
				return nil, fmt.Errorf("job %s: invalid interval %q: %w", job.Name, job.Interval, err)
			}
			if interval <= 0 {
				return nil, fmt.Errorf("job %s: interval must be positive", job.Name)
			}
			resolved.Interval = interval
		}
		schedules[job.Name] = resolved
	}

	return schedules, nil
}
