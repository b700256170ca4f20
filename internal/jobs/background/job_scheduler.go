package background

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"orgmanager/internal/services"
)

const reconcileJobName = "tenant-reconcile"

// Reconciler is the part of the organization service the scheduler drives.
type Reconciler interface {
	Reconcile(ctx context.Context, orphanGracePeriod time.Duration) (*services.ReconcileReport, error)
}

// JobScheduler runs the periodic housekeeping of the directory
type JobScheduler struct {
	scheduler  gocron.Scheduler
	reconciler Reconciler
	log        *zap.Logger
	interval   time.Duration
	grace      time.Duration
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	job gocron.Job
}

// NewJobScheduler creates a scheduler with the reconciliation job registered.
// Nothing runs until Start.
func NewJobScheduler(reconciler Reconciler, log *zap.Logger, interval, grace time.Duration) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler:  scheduler,
		reconciler: reconciler,
		log:        log.Named("jobs"),
		interval:   interval,
		grace:      grace,
		timeout:    interval,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := js.registerJobs(); err != nil {
		cancel()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) registerJobs() error {
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(js.interval),
		gocron.NewTask(js.reconcile),
		gocron.WithName(reconcileJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconcile job: %w", err)
	}

	js.job = job
	return nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler", zap.Duration("reconcile_interval", js.interval))
	js.scheduler.Start()
}

// Stop cancels a running pass and waits for the scheduler to shut down
func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

// NextRun reports when the reconciliation job fires next.
func (js *JobScheduler) NextRun() (time.Time, error) {
	return js.job.NextRun()
}

// RunNow runs one reconciliation pass synchronously.
func (js *JobScheduler) RunNow(ctx context.Context) (*services.ReconcileReport, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()
	return js.reconciler.Reconcile(ctx, js.grace)
}

func (js *JobScheduler) reconcile() {
	start := time.Now()
	report, err := js.RunNow(js.ctx)
	if err != nil {
		js.log.Error("reconciliation pass finished with errors", zap.Error(err), zap.Duration("took", time.Since(start)))
	}
	if report != nil {
		js.log.Info("reconciliation pass complete",
			zap.Int("orphans_removed", report.OrphansRemoved),
			zap.Int("dangling_removed", report.DanglingRemoved),
			zap.Int("partitions_repaired", report.PartitionsRepaired),
			zap.Duration("took", time.Since(start)))
	}
}
