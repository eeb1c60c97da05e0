package scheduler

import (
	"time"

	"go.uber.org/zap"

	"bookstore/internal/services"
)

// Config holds cadence and batch sizes of the fulfillment jobs.
type Config struct {
	ProgressionInterval time.Duration
	ProgressionBatch    int
	AutoConfirm         bool
	StaleInterval       time.Duration
	StaleMaxAge         time.Duration
	StaleBatch          int
	ShipmentInterval    time.Duration
	ShipmentWindow      time.Duration
	ShipmentBatch       int
	RunTimeout          time.Duration
}

// staggerStep separates the first runs of the jobs.
const staggerStep = 10 * time.Second

// New builds a Runner with the progression, stale order and shipment
// notification jobs.
func New(cfg Config, orders OrderLister, transitions OrderTransitioner, notifier services.Notifier, logger *zap.Logger) *Runner {
	logger = nopIfNil(logger).Named("scheduler")

	progression := NewProgression(orders, transitions, cfg.ProgressionBatch, cfg.AutoConfirm, logger)
	stale := NewStaleReclaimer(orders, transitions, cfg.StaleMaxAge, cfg.StaleBatch, logger)
	shipments := NewShipmentNotifier(orders, notifier, cfg.ShipmentWindow, cfg.ShipmentBatch, logger)

	return NewRunner(cfg.RunTimeout, logger,
		Task{Name: "progression", Interval: cfg.ProgressionInterval, Run: progression.Run},
		Task{Name: "stale-orders", Interval: cfg.StaleInterval, Delay: staggerStep, Run: stale.Run},
		Task{Name: "shipment-notifications", Interval: cfg.ShipmentInterval, Delay: 2 * staggerStep, Run: shipments.Run},
	)
}
