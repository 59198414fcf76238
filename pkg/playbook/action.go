package playbook

import (
	"context"
	"time"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/notifysink"
	"github.com/fluxguard/incidentcore/pkg/store"
)

// ActionResult is what a single action execution hands back for binding
// into the execution context under its action_<index> namespace.
type ActionResult struct {
	Outputs map[string]any
}

// ActionFunc runs one action's fully-substituted parameters against
// incident and returns its outputs, or an error that fails the step.
type ActionFunc func(ctx context.Context, incidentID model.IncidentID, params map[string]any) (ActionResult, error)

// Registry is the open, per-deployment-extensible set of action handlers,
// keyed by action type name.
type Registry struct {
	handlers map[string]ActionFunc
}

// NewRegistry builds a Registry with the built-in action types wired to
// sink, store, and clock.
func NewRegistry(sink notifysink.Sink, st store.Store, c clock.Clock, httpClient HTTPDoer) *Registry {
	r := &Registry{handlers: make(map[string]ActionFunc)}

	notify := func(kind model.ChannelKind) ActionFunc {
		return func(ctx context.Context, incidentID model.IncidentID, params map[string]any) (ActionResult, error) {
			return sendNotification(ctx, sink, c, incidentID, kind, params)
		}
	}
	r.Register("Slack", notify(model.ChannelSlack))
	r.Register("Email", notify(model.ChannelEmail))
	r.Register("Pagerduty", notify(model.ChannelPagerDuty))
	r.Register("Webhook", notify(model.ChannelWebhook))

	r.Register("Wait", waitAction(c))
	r.Register("HttpRequest", httpRequestAction(newBreaker(), httpClient))
	r.Register("IncidentResolve", incidentResolveAction(st, c))
	r.Register("SeverityIncrease", severityStepAction(st, c, true))
	r.Register("SeverityDecrease", severityStepAction(st, c, false))

	return r
}

// Register adds or replaces an action handler, enabling per-deployment
// extension beyond the built-ins.
func (r *Registry) Register(actionType string, fn ActionFunc) {
	r.handlers[actionType] = fn
}

func (r *Registry) lookup(actionType string) (ActionFunc, bool) {
	fn, ok := r.handlers[actionType]
	return fn, ok
}

func sendNotification(ctx context.Context, sink notifysink.Sink, c clock.Clock, incidentID model.IncidentID,
	kind model.ChannelKind, params map[string]any) (ActionResult, error) {
	ch := model.Channel{Kind: kind}
	switch kind {
	case model.ChannelSlack:
		ch.SlackChannel, _ = params["channel"].(string)
		ch.Message, _ = params["message"].(string)
	case model.ChannelEmail:
		ch.To, _ = params["to"].(string)
		ch.Subject, _ = params["subject"].(string)
		ch.Body, _ = params["body"].(string)
	case model.ChannelPagerDuty:
		ch.ServiceKey, _ = params["service_key"].(string)
		ch.IncidentKey, _ = params["incident_key"].(string)
	case model.ChannelWebhook:
		ch.URL, _ = params["url"].(string)
		ch.Payload = params
	}
	n := &model.Notification{
		ID:         model.NewNotificationID(),
		IncidentID: incidentID,
		Channel:    ch,
		Status:     model.NotificationPending,
		CreatedAt:  c.Now(),
	}
	if err := sink.QueueNotification(ctx, n); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Outputs: map[string]any{"notification_id": string(n.ID)}}, nil
}

func waitAction(c clock.Clock) ActionFunc {
	return func(ctx context.Context, incidentID model.IncidentID, params map[string]any) (ActionResult, error) {
		secs, _ := toSeconds(params["duration"])
		select {
		case <-c.After(time.Duration(secs * float64(time.Second))):
		case <-ctx.Done():
			return ActionResult{}, ctx.Err()
		}
		return ActionResult{}, nil
	}
}

func toSeconds(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func incidentResolveAction(st store.Store, c clock.Clock) ActionFunc {
	return func(ctx context.Context, incidentID model.IncidentID, params map[string]any) (ActionResult, error) {
		notes, _ := params["notes"].(string)
		rootCause, _ := params["root_cause"].(string)
		return ActionResult{}, mutateIncident(ctx, st, incidentID, func(inc *model.Incident) {
			inc.Resolve(c.Now(), "playbook-engine", model.ResolutionAutomated, notes, rootCause)
		})
	}
}

func severityStepAction(st store.Store, c clock.Clock, up bool) ActionFunc {
	return func(ctx context.Context, incidentID model.IncidentID, params map[string]any) (ActionResult, error) {
		return ActionResult{}, mutateIncident(ctx, st, incidentID, func(inc *model.Incident) {
			inc.SetSeverity(c.Now(), "playbook-engine", inc.Severity.Saturate(up))
		})
	}
}

// mutateIncident applies mutate through the store's optimistic-concurrency
// retry wrapper when available, else falls back to get-then-update.
func mutateIncident(ctx context.Context, st store.Store, id model.IncidentID, mutate func(*model.Incident)) error {
	if m, ok := st.(interface {
		MutateIncident(ctx context.Context, id model.IncidentID, maxAttempts int, mutate func(*model.Incident)) (*model.Incident, error)
	}); ok {
		_, err := m.MutateIncident(ctx, id, 5, mutate)
		return err
	}
	inc, err := st.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	mutate(inc)
	return st.UpdateIncident(ctx, inc)
}

