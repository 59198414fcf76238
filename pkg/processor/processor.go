// Package processor implements the Incident Processor: the orchestration
// point that turns an inbound Alert into an Incident and drives it through
// enrichment, notification, playbook, routing, escalation and correlation
// in a single best-effort pass. Every engine it depends on is reached
// through pkg/locator's narrow interfaces so this package never imports an
// engine package directly and never forms an import cycle with one.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/dedup"
	"github.com/fluxguard/incidentcore/pkg/eventbus"
	"github.com/fluxguard/incidentcore/pkg/incidenterr"
	"github.com/fluxguard/incidentcore/pkg/locator"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/notifysink"
	"github.com/fluxguard/incidentcore/pkg/store"
)

// AckStatus reports how ProcessAlert disposed of an inbound alert.
type AckStatus string

const (
	AckAccepted  AckStatus = "accepted"
	AckDuplicate AckStatus = "duplicate"
)

// Ack is returned to the alert submitter. It never carries pipeline-stage
// failures (enrichment, notification, ...) — those are best-effort and are
// only logged, matching spec behavior that a slow/broken optional stage
// must never block alert intake.
type Ack struct {
	AlertID    model.AlertID
	IncidentID model.IncidentID
	Status     AckStatus
}

// Processor is the Incident Processor. Dedup and Store are required;
// everything reached through Locator is optional — a nil field in Locator
// means that pipeline stage is skipped.
type Processor struct {
	store   store.Store
	dedup   *dedup.Engine
	notify  notifysink.Sink
	bus     *eventbus.Bus
	clock   clock.Clock
	locator *locator.Locator
}

// New builds a Processor. notify, bus and loc may be nil — each nil
// collaborator disables the pipeline stage it backs.
func New(s store.Store, d *dedup.Engine, notify notifysink.Sink, bus *eventbus.Bus, c clock.Clock, loc *locator.Locator) *Processor {
	if s == nil {
		panic("processor.New: store must not be nil")
	}
	if d == nil {
		panic("processor.New: dedup engine must not be nil")
	}
	if c == nil {
		c = clock.Real()
	}
	if loc == nil {
		loc = locator.New()
	}
	return &Processor{store: s, dedup: d, notify: notify, bus: bus, clock: c, locator: loc}
}

// ProcessAlert is the single entry point inbound alerts go through: dedup
// check, conversion to an Incident on a miss, and the best-effort pipeline.
func (p *Processor) ProcessAlert(ctx context.Context, alert *model.Alert) (Ack, error) {
	logger := slog.With("alert_id", alert.ID, "source", alert.Source, "severity", alert.Severity)
	logger.Info("processing alert")

	if existing := p.dedup.FindDuplicate(ctx, alert); existing != nil {
		logger.Info("alert is a duplicate, merging into existing incident", "incident_id", existing.ID)
		if _, err := p.dedup.MergeInto(ctx, alert, existing.ID); err != nil {
			return Ack{}, fmt.Errorf("merge duplicate alert into incident %s: %w", existing.ID, err)
		}
		return Ack{AlertID: alert.ID, IncidentID: existing.ID, Status: AckDuplicate}, nil
	}

	now := p.clock.Now()
	incident := alert.ToIncident(now)
	incident.Fingerprint = dedup.Fingerprint(incident.Source, incident.Title, incident.IncidentType)

	if err := p.store.SaveIncident(ctx, incident); err != nil {
		return Ack{}, fmt.Errorf("save incident from alert %s: %w", alert.ID, err)
	}

	logger.Info("created new incident from alert", "incident_id", incident.ID)

	if p.bus != nil {
		p.bus.EmitAlertReceived(alert)
		p.bus.EmitAlertConverted(alert, incident.ID)
		p.bus.EmitIncidentCreated(incident)
	}

	p.runPipeline(ctx, incident)

	return Ack{AlertID: alert.ID, IncidentID: incident.ID, Status: AckAccepted}, nil
}

// CreateIncident saves a fully-formed Incident directly, skipping alert
// conversion. Unlike ProcessAlert it rejects outright on a fingerprint
// collision rather than merging — a caller building an Incident by hand is
// expected to already know it's new.
func (p *Processor) CreateIncident(ctx context.Context, incident *model.Incident) (Ack, error) {
	if incident.Fingerprint == "" {
		incident.Fingerprint = dedup.Fingerprint(incident.Source, incident.Title, incident.IncidentType)
	}

	if dup := p.dedup.IsDuplicateIncident(ctx, incident); dup != nil {
		return Ack{}, incidenterr.New(incidenterr.KindValidation, "incident appears to be a duplicate")
	}

	if err := p.store.SaveIncident(ctx, incident); err != nil {
		return Ack{}, fmt.Errorf("save incident %s: %w", incident.ID, err)
	}

	slog.Info("created new incident", "incident_id", incident.ID, "severity", incident.Severity)

	p.runPipeline(ctx, incident)

	return Ack{IncidentID: incident.ID, Status: AckAccepted}, nil
}

// runPipeline drives every optional post-creation stage. Each stage is its
// own error boundary: a failure is logged and the remaining stages still
// run, matching spec behavior that none of these may abort incident
// creation once the incident is durably saved.
func (p *Processor) runPipeline(ctx context.Context, incident *model.Incident) {
	logger := slog.With("incident_id", incident.ID)

	if p.locator.Enrichment != nil {
		enriched := p.locator.Enrichment.Enrich(ctx, incident)
		logger.Info("incident enriched with context",
			"successful", len(enriched.SuccessfulEnrichers),
			"failed", len(enriched.FailedEnrichers),
			"duration_ms", enriched.EnrichmentDurationMS)
	}

	if p.notify != nil {
		if err := p.notifyIncidentDetected(ctx, incident); err != nil {
			logger.Error("failed to send incident detection notification", "error", err)
		}
	}

	if p.locator.Playbooks != nil {
		p.autoExecutePlaybooks(ctx, incident, logger)
	}

	if p.locator.Routing != nil {
		result := p.locator.Routing.Evaluate(incident)
		if result.ActionsApplied > 0 {
			logger.Info("routing rules matched",
				"actions_applied", result.ActionsApplied,
				"suggested_assignees", result.SuggestedAssignees)
		}
	}

	if p.locator.Escalation != nil {
		if policy := p.locator.Escalation.FindPolicyForIncident(incident.Severity); policy != nil {
			state := p.locator.Escalation.Start(incident.ID, policy)
			if state != nil {
				logger.Info("started escalation for incident", "policy_id", policy.ID, "policy_name", policy.Name)
			}
		}
	}

	if p.locator.Correlation != nil {
		p.analyzeCorrelations(ctx, incident, logger)
	}

	// ML training sample collection is out of scope (spec §1 non-goal);
	// this stage is intentionally a no-op.
}

// notifyIncidentDetected queues one best-effort detection notification, to
// the "#incidents" Slack channel only; no other channel is notified. A
// failed queue attempt is
// surfaced to the caller so runPipeline can log it without aborting the
// rest of the pipeline.
func (p *Processor) notifyIncidentDetected(ctx context.Context, incident *model.Incident) error {
	n := &model.Notification{
		ID:         model.NewNotificationID(),
		IncidentID: incident.ID,
		Channel: model.Channel{
			Kind:         model.ChannelSlack,
			SlackChannel: "#incidents",
			Message:      fmt.Sprintf("[%s] %s: %s", incident.Severity, incident.Title, incident.Description),
		},
		Status:    model.NotificationPending,
		CreatedAt: p.clock.Now(),
	}
	return p.notify.QueueNotification(ctx, n)
}

func (p *Processor) autoExecutePlaybooks(ctx context.Context, incident *model.Incident, logger *slog.Logger) {
	matches := p.locator.Playbooks.MatchingPlaybooks(incident)
	if len(matches) == 0 {
		return
	}
	executed := 0
	for _, pb := range matches {
		result := p.locator.Playbooks.Execute(ctx, pb, incident)
		if result.Failed {
			logger.Error("playbook execution failed", "playbook_id", pb.ID, "playbook_name", pb.Name)
			continue
		}
		executed++
	}
	if executed > 0 {
		logger.Info("auto-executed playbooks for incident", "execution_count", executed)
	}
}

func (p *Processor) analyzeCorrelations(ctx context.Context, incident *model.Incident, logger *slog.Logger) {
	matches, err := p.locator.Correlation.Analyze(ctx, incident)
	if err != nil {
		logger.Error("failed to analyze incident correlations", "error", err)
		return
	}
	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		p.locator.Correlation.AssignToGroup(incident, m)
	}
	logger.Info("correlations detected for incident", "correlation_count", len(matches))
}
