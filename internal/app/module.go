package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/tunehaus/backstage/internal/app/api/server"
	"github.com/tunehaus/backstage/internal/app/service/analytics"
	"github.com/tunehaus/backstage/internal/app/service/cron"
	"github.com/tunehaus/backstage/internal/app/service/membership"
	"github.com/tunehaus/backstage/internal/platform/db"
	"github.com/tunehaus/backstage/internal/platform/directory"
	"github.com/tunehaus/backstage/internal/platform/ledger"
	"github.com/tunehaus/backstage/internal/platform/notifier"
	"github.com/tunehaus/backstage/pkg/clock"
	"github.com/tunehaus/backstage/pkg/config"
	"github.com/tunehaus/backstage/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	clock.Module,
	db.Module,
	ledger.Module,
	directory.Module,
	notifier.Module,
	membership.Module,
	analytics.Module,
	cron.Module,
	server.Module,
)
