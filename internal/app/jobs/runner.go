package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/lampstand/intercede/internal/app/service/dispatch"
	"github.com/lampstand/intercede/internal/app/service/followup"
	"github.com/lampstand/intercede/pkg/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Runner owns the two scheduler timers. Both jobs poll on fixed intervals
// rather than keeping per-subscription timers; crash recovery costs one
// poll interval of latency at most.
type Runner struct {
	log        *zap.SugaredLogger
	cfg        *config.Config
	cron       *cron.Cron
	dispatcher *dispatch.Dispatcher
	engine     *followup.Engine
	ledger     *dispatch.Ledger

	cancel context.CancelFunc
}

func NewRunner(
	log *zap.SugaredLogger,
	cfg *config.Config,
	dispatcher *dispatch.Dispatcher,
	engine *followup.Engine,
	ledger *dispatch.Ledger,
) *Runner {
	return &Runner{
		log:        log,
		cfg:        cfg,
		cron:       cron.New(),
		dispatcher: dispatcher,
		engine:     engine,
		ledger:     ledger,
	}
}

func (r *Runner) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	sched := r.cfg.Scheduler

	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", sched.DispatchInterval), func() {
		r.dispatcher.Run(ctx)
	}); err != nil {
		return fmt.Errorf("schedule dispatcher: %w", err)
	}
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", sched.FollowupInterval), func() {
		r.engine.Run(ctx)
	}); err != nil {
		return fmt.Errorf("schedule followup engine: %w", err)
	}
	if _, err := r.cron.AddFunc("@daily", func() {
		r.pruneLedger(ctx)
	}); err != nil {
		return fmt.Errorf("schedule ledger pruning: %w", err)
	}

	// startup kicks: one run of each job shortly after boot, so a restart
	// never waits a full interval to catch up
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(sched.StartupDelay):
		}
		r.dispatcher.Run(ctx)
		r.engine.Run(ctx)
	}()

	r.cron.Start()
	r.log.Infow("scheduler started",
		"dispatch_interval", sched.DispatchInterval,
		"followup_interval", sched.FollowupInterval,
		"startup_delay", sched.StartupDelay,
	)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	stopCtx := r.cron.Stop()
	// wait for in-flight runs registered with cron; in-flight sends are not
	// cancelled, the ledger absorbs the restart race
	<-stopCtx.Done()
	r.log.Infow("scheduler stopped")
}

func (r *Runner) pruneLedger(ctx context.Context) {
	days := r.cfg.Scheduler.LedgerRetentionDays
	if days <= 0 {
		return
	}
	n, err := r.ledger.Prune(ctx, days)
	if err != nil {
		r.log.Errorw("ledger pruning failed", "err", err)
		return
	}
	if n > 0 {
		r.log.Infow("pruned dispatch ledger", "rows", n, "retention_days", days)
	}
}

func register(lc fx.Lifecycle, r *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start()
		},
		OnStop: func(ctx context.Context) error {
			r.Stop()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewRunner),
	fx.Invoke(register),
)
