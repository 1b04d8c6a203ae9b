package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner is the piece of the orchestrator a schedule drives.
type Runner interface {
	Run(ctx context.Context, opts Options) (*Result, error)
	Defaults() Options
}

// Scheduler triggers runs on a cron schedule in a fixed timezone. A tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	id     cron.EntryID
}

func NewScheduler(runner Runner, spec, timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, runner: runner, spec: spec}
	s.id, err = c.AddFunc(spec, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce runs the pipeline with the default options and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	res, err := s.runner.Run(ctx, s.runner.Defaults())
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Warn().Msg("Skipping scheduled run, another run is in progress")
	case err != nil:
		log.Error().Err(err).Msg("Scheduled pipeline run failed")
	default:
		log.Info().Str("run_id", res.RunID).Str("status", string(res.Status)).Msg("Scheduled pipeline run finished")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Str("timezone", s.cron.Location().String()).
		Time("next_run", s.Next()).
		Msg("Scheduler started")
}

// Stop stops scheduling and returns a context that is done once any
// running job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next scheduled run time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// cronLogger sends cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
