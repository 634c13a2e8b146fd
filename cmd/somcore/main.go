// Command somcore wires the core's in-memory registries, validation
// engine, and monitoring together into a single running process, the way
// the teacher's cmd/indexer does for its own service: load config, build
// the dependency graph, start background work, wait for a shutdown signal.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/constraintengine"
	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/governance"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/monitoring"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/schema"
	"github.com/cmvayette/digitalbackbone-sub002/internal/subscription"
	"github.com/cmvayette/digitalbackbone-sub002/internal/validation"
)

func main() {
	log := logrus.WithField("app", "somcore")

	cfg := config.Load(".env")

	docs := documentregistry.New()
	schemaReg := schema.New()
	holons := holonregistry.New()
	constraints := constraintengine.New(docs)
	events := eventstore.New(cfg)
	relationships := relationshipregistry.New(holons, constraints, events)
	gov := governance.New(docs, schemaReg)
	validator := validation.New(events, docs, cfg)
	hub := subscription.New()

	mon := monitoring.Init(cfg)
	mon.StartBackgroundTasks()
	defer mon.Shutdown()

	mon.RegisterAlertHandler(func(alert monitoring.Alert) {
		log.WithFields(logrus.Fields{
			"alert_type": alert.Type,
			"severity":   alert.Severity,
		}).Warn(alert.Message)
	})

	hub.Subscribe("monitoring", subscription.SubscriberFunc(func(e model.Event) error {
		mon.RecordEventIngestion(0, true, "")
		return nil
	}))

	log.WithFields(logrus.Fields{
		"metrics_retention":         cfg.MetricsRetentionPeriod,
		"health_check_interval":     cfg.HealthCheckInterval,
		"concurrent_position_limit": cfg.ConcurrentPositionLimit,
		"holon_count":               holons.Count(),
		"pending_proposal_count":    len(gov.GetProposalsByStatus(model.ProposalProposed)),
		"validation_log_entries":    len(validator.GetValidationLog(validation.LogFilter{})),
	}).Info("core initialized")

	// relationships is held here, not exercised directly, because this
	// entrypoint only wires the dependency graph and starts background
	// tasks — relationship operations are invoked through the registry by
	// whatever process embeds it, not by this process itself.
	_ = relationships

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
}
