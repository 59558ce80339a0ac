package followup

import (
	"github.com/lampstand/intercede/internal/app/service/activity"
	"github.com/lampstand/intercede/internal/app/service/notify"
	subsvc "github.com/lampstand/intercede/internal/app/service/subscription"
	subscribersvc "github.com/lampstand/intercede/internal/app/service/subscriber"
	"github.com/lampstand/intercede/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newEngine(
	log *zap.SugaredLogger,
	m *metrics.JobMetrics,
	subs *subsvc.Service,
	observer *activity.Service,
	contacts *subscribersvc.Service,
	notifier notify.Notifier,
) *Engine {
	return NewEngine(log, m, subs, observer, contacts, notifier)
}

func newService(db *gorm.DB, log *zap.SugaredLogger, subs *subsvc.Service) *Service {
	return NewService(db, log, subs)
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(newService),
)
