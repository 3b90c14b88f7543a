/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"jastip-settlement-go/internal/audit"
	"jastip-settlement-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	ErrJobRunning = errors.New("job already running")
	ErrUnknownJob = errors.New("unknown job")
)

// Job is one reconciliation pass that can run on a schedule or on demand.
type Job interface {
	Name() string
	Run(ctx context.Context) (models.JobSummary, error)
}

// Locker guards a job across processes. Acquire reports false when another
// holder owns the lease.
type Locker interface {
	Acquire(ctx context.Context, job string) (release func(), ok bool, err error)
}

type entry struct {
	job      Job
	interval time.Duration
	sem      *semaphore.Weighted
}

// SchedulerConfig contains configuration for Scheduler
type SchedulerConfig struct {
	Locker Locker
	Sink   audit.Sink
}

// Scheduler runs each registered job on its own ticker and serializes runs of
// the same job; different jobs may run concurrently.
type Scheduler struct {
	entries map[string]*entry
	locker  Locker
	sink    audit.Sink

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	sink := cfg.Sink
	if sink == nil {
		sink = audit.Multi{}
	}
	return &Scheduler{
		entries:  make(map[string]*entry),
		locker:   cfg.Locker,
		sink:     sink,
		stopChan: make(chan struct{}),
	}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %v", name, interval)
	}
	s.entries[name] = &entry{job: job, interval: interval, sem: semaphore.NewWeighted(1)}
	return nil
}

// RegisterManual adds a job that only runs through Trigger.
func (s *Scheduler) RegisterManual(job Job) error {
	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	s.entries[name] = &entry{job: job, sem: semaphore.NewWeighted(1)}
	return nil
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches one ticker loop per scheduled job; each runs once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("Starting reconciliation scheduler", zap.Strings("jobs", s.Jobs()))

	for _, name := range s.Jobs() {
		e := s.entries[name]
		if e.interval == 0 {
			zap.L().Info("Job registered for manual trigger only", zap.String("job", name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, e)
		zap.L().Info("Job scheduled", zap.String("job", name), zap.Duration("interval", e.interval))
	}
}

// Stop signals every loop to exit and waits for in-flight scheduled runs.
func (s *Scheduler) Stop() {
	zap.L().Info("Stopping reconciliation scheduler")
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	zap.L().Info("Reconciliation scheduler stopped")
}

// Trigger runs a job on demand, sharing the per-job guard with the ticker.
func (s *Scheduler) Trigger(ctx context.Context, name string) (models.JobSummary, error) {
	e, ok := s.entries[name]
	if !ok {
		return models.JobSummary{Job: name}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.tick(ctx, e)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, e)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, e *entry) {
	_, err := s.run(ctx, e)
	if errors.Is(err, ErrJobRunning) {
		zap.L().Info("Previous run still in progress, skipping tick", zap.String("job", e.job.Name()))
		return
	}
	if err != nil {
		zap.L().Error("Scheduled run failed", zap.String("job", e.job.Name()), zap.Error(err))
	}
}

func (s *Scheduler) run(ctx context.Context, e *entry) (models.JobSummary, error) {
	name := e.job.Name()
	if !e.sem.TryAcquire(1) {
		return models.JobSummary{Job: name}, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer e.sem.Release(1)

	// A started run is never torn down by caller cancellation.
	runCtx := context.WithoutCancel(ctx)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(runCtx, name)
		if err != nil {
			return models.JobSummary{Job: name}, fmt.Errorf("failed to acquire lease for %s: %w", name, err)
		}
		if !ok {
			return models.JobSummary{Job: name}, fmt.Errorf("%w: %s holds lease elsewhere", ErrJobRunning, name)
		}
		defer release()
	}

	summary, err := e.job.Run(runCtx)
	if err != nil {
		return summary, err
	}

	s.sink.RunFinished(runCtx, summary)
	return summary, nil
}
