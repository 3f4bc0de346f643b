package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/san-kum/verletsim/internal/config"
	"github.com/san-kum/verletsim/internal/metrics"
)

// Job is one named configuration in an Ensemble.
type Job struct {
	Name   string
	Config *config.Config
}

type Outcome struct {
	Name   string
	Result *Result
	Err    error
}

// Ensemble runs independent configurations concurrently, one System per
// goroutine.
type Ensemble struct {
	jobs   []Job
	logger *slog.Logger
}

func NewEnsemble(jobs []Job) *Ensemble {
	return &Ensemble{jobs: jobs, logger: slog.Default()}
}

func (e *Ensemble) SetLogger(l *slog.Logger) { e.logger = l }

// SeedJobs clones cfg n times with consecutive seeds starting at seedStart.
func SeedJobs(cfg *config.Config, n int, seedStart int64) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		c := cfg.Clone()
		c.Seed = seedStart + int64(i)
		jobs[i] = Job{Name: fmt.Sprintf("%s/seed=%d", cfg.Name, c.Seed), Config: c}
	}
	return jobs
}

// Run executes every job with the default metrics attached. Outcomes are in
// job order; the returned error joins every job failure.
func (e *Ensemble) Run(ctx context.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, len(e.jobs))

	var wg sync.WaitGroup
	for i, job := range e.jobs {
		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			outcomes[idx] = Outcome{Name: job.Name}

			runner, err := Build(job.Config)
			if err != nil {
				outcomes[idx].Err = err
				return
			}
			runner.SetLogger(e.logger.With("job", job.Name), 0)
			runner.AddMetric(metrics.Defaults()...)

			outcomes[idx].Result, outcomes[idx].Err = runner.Run(ctx, RunConfig{
				Frames: job.Config.Frames,
				Dt:     job.Config.Dt,
			})
		}(i, job)
	}

	wg.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}
