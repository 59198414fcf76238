// Package eventbus provides the fire-and-forget hook surface the Processor
// calls into. Hooks are optional: a nil handler is simply
// skipped. Panics inside a handler are recovered and logged so a bad
// subscriber can never take down the pipeline.
package eventbus

import (
	"log/slog"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// Bus holds the optional hook functions. Every field may be left nil.
type Bus struct {
	OnAlertReceived          func(alert *model.Alert)
	OnAlertConverted         func(alert *model.Alert, incidentID model.IncidentID)
	OnIncidentCreated        func(inc *model.Incident)
	OnIncidentUpdated        func(inc *model.Incident, changeSet []string)
	OnIncidentResolved       func(inc *model.Incident)
	OnCorrelationGroupUpdate func(group *model.CorrelationGroup)
}

func guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event bus hook panicked", "hook", name, "panic", r)
		}
	}()
	fn()
}

// EmitAlertReceived fires OnAlertReceived if set.
func (b *Bus) EmitAlertReceived(alert *model.Alert) {
	if b == nil || b.OnAlertReceived == nil {
		return
	}
	guard("alert_received", func() { b.OnAlertReceived(alert) })
}

// EmitAlertConverted fires OnAlertConverted if set.
func (b *Bus) EmitAlertConverted(alert *model.Alert, incidentID model.IncidentID) {
	if b == nil || b.OnAlertConverted == nil {
		return
	}
	guard("alert_converted", func() { b.OnAlertConverted(alert, incidentID) })
}

// EmitIncidentCreated fires OnIncidentCreated if set.
func (b *Bus) EmitIncidentCreated(inc *model.Incident) {
	if b == nil || b.OnIncidentCreated == nil {
		return
	}
	guard("incident_created", func() { b.OnIncidentCreated(inc) })
}

// EmitIncidentUpdated fires OnIncidentUpdated if set.
func (b *Bus) EmitIncidentUpdated(inc *model.Incident, changeSet []string) {
	if b == nil || b.OnIncidentUpdated == nil {
		return
	}
	guard("incident_updated", func() { b.OnIncidentUpdated(inc, changeSet) })
}

// EmitIncidentResolved fires OnIncidentResolved if set.
func (b *Bus) EmitIncidentResolved(inc *model.Incident) {
	if b == nil || b.OnIncidentResolved == nil {
		return
	}
	guard("incident_resolved", func() { b.OnIncidentResolved(inc) })
}

// EmitCorrelationGroupUpdated fires OnCorrelationGroupUpdate if set.
func (b *Bus) EmitCorrelationGroupUpdated(group *model.CorrelationGroup) {
	if b == nil || b.OnCorrelationGroupUpdate == nil {
		return
	}
	guard("correlation_group_updated", func() { b.OnCorrelationGroupUpdate(group) })
}
