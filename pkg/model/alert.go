package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertID identifies an inbound Alert.
type AlertID string

// NewAlertID mints a fresh AlertID.
func NewAlertID() AlertID {
	return AlertID(uuid.NewString())
}

// Alert is an inbound record from a monitoring source. ParentAlertID and
// IncidentID are populated by the Processor after dedup/conversion
//.
type Alert struct {
	ID            AlertID           `json:"id,omitempty"`
	ExternalID    string            `json:"external_id,omitempty"`
	Source        string            `json:"source"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Severity      Severity          `json:"severity"`
	Type          Type              `json:"type,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	Timestamp     time.Time         `json:"timestamp,omitempty"`
	ParentAlertID *AlertID          `json:"parent_alert_id,omitempty"`
	IncidentID    *IncidentID       `json:"incident_id,omitempty"`
}

// ToIncident converts the alert into a freshly created Incident. Fingerprint
// is left for the caller (Dedup Engine) to assign deterministically.
func (a *Alert) ToIncident(now time.Time) *Incident {
	labels := cloneStringMap(a.Labels)
	inc := &Incident{
		ID:                NewIncidentID(),
		State:             StateDetected,
		Severity:          a.Severity,
		IncidentType:      a.Type,
		Source:            a.Source,
		Title:             a.Title,
		Description:       a.Description,
		Labels:            labels,
		AffectedResources: make(map[string]struct{}),
		CreatedAt:         now,
		UpdatedAt:         now,
		OccurrenceCount:   1,
	}
	inc.Timeline = []TimelineEvent{{
		Timestamp:   now,
		Type:        "IncidentCreated",
		Actor:       "processor",
		Description: "created from alert " + a.ExternalID,
	}}
	return inc
}
