package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
)

const DefaultSchedule = "00 16 * * *"

var ErrRunInProgress = errors.New("a run is already in progress")

var _ OrchestratorInterface = (*Orchestrator)(nil)

type OrchestratorOptions struct {
	Schedule    string
	WorkerCount int
	RetryDelay  time.Duration
	Location    *time.Location
}

// Orchestrator is the scheduled execution context. Each run builds a graph
// of collect_images_{source} -> update_metadata_{source} per source, with
// create_daily_log downstream of every update_metadata task.
type Orchestrator struct {
	sources     SourceProvider
	collector   *harvest.Collector
	metadata    *harvest.Metadata
	summaries   *harvest.SummaryWriter
	schedule    string
	workerCount int
	retryDelay  time.Duration
	location    *time.Location
	now         func() time.Time

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	latest  *harvest.RunSummary
}

func NewOrchestrator(sources SourceProvider, collector *harvest.Collector, metadata *harvest.Metadata, summaries *harvest.SummaryWriter, opts OrchestratorOptions) *Orchestrator {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		sources:     sources,
		collector:   collector,
		metadata:    metadata,
		summaries:   summaries,
		schedule:    opts.Schedule,
		workerCount: opts.WorkerCount,
		retryDelay:  opts.RetryDelay,
		location:    opts.Location,
		now:         time.Now,
		cron:        cron.New(cron.WithLocation(opts.Location)),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (o *Orchestrator) Start() error {
	_, err := o.cron.AddFunc(o.schedule, func() {
		if _, err := o.RunOnce(o.ctx); err != nil {
			slog.Error("Scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	o.cron.Start()
	slog.Info("Orchestrator started", "schedule", o.schedule, "workers", o.workerCount)
	return nil
}

func (o *Orchestrator) Stop() {
	o.cancel()
	<-o.cron.Stop().Done()
	o.wg.Wait()
	slog.Info("Orchestrator stopped")
}

// Trigger starts a run in the background and returns its id.
func (o *Orchestrator) Trigger() (string, error) {
	if !o.begin() {
		return "", ErrRunInProgress
	}

	runID := uuid.NewString()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.end()
		if _, err := o.run(o.ctx, runID); err != nil {
			slog.Error("Triggered run failed", "run_id", runID, "error", err)
		}
	}()
	return runID, nil
}

// RunOnce runs every enabled source to completion and returns the summary.
func (o *Orchestrator) RunOnce(ctx context.Context) (harvest.RunSummary, error) {
	if !o.begin() {
		return harvest.RunSummary{}, ErrRunInProgress
	}
	defer o.end()
	return o.run(ctx, uuid.NewString())
}

func (o *Orchestrator) Latest() (harvest.RunSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.latest == nil {
		return harvest.RunSummary{}, false
	}
	return *o.latest, true
}

func (o *Orchestrator) Sources() []*feed.Source {
	return o.sources.GetEnabledSources()
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

func (o *Orchestrator) run(ctx context.Context, runID string) (harvest.RunSummary, error) {
	start := time.Now()
	graph, dailyLog, err := o.buildGraph()
	if err != nil {
		return harvest.RunSummary{}, err
	}

	slog.Info("Run started", "run_id", runID, "tasks", graph.Len())

	results := graph.Run(ctx, o.workerCount)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	summary, ok := dailyLog.Summary()
	if !ok {
		return harvest.RunSummary{}, fmt.Errorf("run %s produced no daily log (%d of %d tasks failed)", runID, failed, len(results))
	}

	o.mu.Lock()
	o.latest = &summary
	o.mu.Unlock()

	slog.Info("Run completed", "run_id", runID, "duration", time.Since(start), "failed_tasks", failed, "total_new_images", summary.TotalNewImages, "total_errors", summary.TotalErrors)
	return summary, nil
}

func (o *Orchestrator) buildGraph() (*Graph, *CreateDailyLogTask, error) {
	handoff := NewHandoff()
	graph := NewGraph(o.retryDelay)

	sources := o.sources.GetEnabledSources()
	names := make([]string, 0, len(sources))
	barrier := make([]string, 0, len(sources))

	for _, source := range sources {
		collect := NewCollectImagesTask(source, o.collector, handoff)
		if err := graph.Add(collect); err != nil {
			return nil, nil, err
		}

		update := NewUpdateMetadataTask(source.Name, o.metadata, handoff)
		if err := graph.Add(update, collect.GetName()); err != nil {
			return nil, nil, err
		}

		names = append(names, source.Name)
		barrier = append(barrier, update.GetName())
	}

	now := func() time.Time { return o.now().In(o.location) }
	dailyLog := NewCreateDailyLogTask(names, o.summaries, handoff, now)
	if err := graph.Add(dailyLog, barrier...); err != nil {
		return nil, nil, err
	}

	return graph, dailyLog, nil
}
