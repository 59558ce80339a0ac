package dispatch

import (
	contentsvc "github.com/lampstand/intercede/internal/app/service/content"
	"github.com/lampstand/intercede/internal/app/service/notify"
	subsvc "github.com/lampstand/intercede/internal/app/service/subscription"
	subscribersvc "github.com/lampstand/intercede/internal/app/service/subscriber"
	"github.com/lampstand/intercede/pkg/config"
	"github.com/lampstand/intercede/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newDispatcher(
	log *zap.SugaredLogger,
	cfg *config.Config,
	m *metrics.JobMetrics,
	subs *subsvc.Service,
	contacts *subscribersvc.Service,
	contentProvider *contentsvc.Service,
	notifier notify.Notifier,
	ledger *Ledger,
) (*Dispatcher, error) {
	floor, err := cfg.Scheduler.Floor()
	if err != nil {
		return nil, err
	}
	return NewDispatcher(log, m, subs, contacts, contentProvider, notifier, ledger, floor), nil
}

var Module = fx.Options(
	fx.Provide(NewLedger),
	fx.Provide(newDispatcher),
)
