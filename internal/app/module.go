package app

import (
	"github.com/lampstand/intercede/internal/app/api/server"
	"github.com/lampstand/intercede/internal/app/jobs"
	"github.com/lampstand/intercede/internal/app/service/activity"
	"github.com/lampstand/intercede/internal/app/service/content"
	"github.com/lampstand/intercede/internal/app/service/dispatch"
	"github.com/lampstand/intercede/internal/app/service/followup"
	"github.com/lampstand/intercede/internal/app/service/notify"
	"github.com/lampstand/intercede/internal/app/service/subscriber"
	"github.com/lampstand/intercede/internal/app/service/subscription"
	"github.com/lampstand/intercede/internal/platform/db"
	"github.com/lampstand/intercede/pkg/config"
	"github.com/lampstand/intercede/pkg/logger"
	"github.com/lampstand/intercede/pkg/metrics"
	"time"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	metrics.Module,
	server.Module,
	notify.Module,
	content.Module,
	activity.Module,
	subscriber.Module,
	subscription.Module,
	dispatch.Module,
	followup.Module,
	jobs.Module,
)
