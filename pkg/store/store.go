// Package store defines the Incident Store contract the core engines
// consume, and ships an in-memory reference implementation. Persistent
// backends (Postgres/Redis/Sled) are external collaborators and are not
// implemented here.
package store

import (
	"context"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// IncidentFilter narrows List/Count queries.
type IncidentFilter struct {
	Severities []model.Severity
	States     []model.State
	Sources    []string
	ActiveOnly bool
}

// Store is the narrow interface every engine depends on. Implementations
// must serialize mutations per-incident — this reference implementation
// does so via optimistic CAS on UpdatedAt.
type Store interface {
	SaveIncident(ctx context.Context, inc *model.Incident) error
	GetIncident(ctx context.Context, id model.IncidentID) (*model.Incident, error)
	UpdateIncident(ctx context.Context, inc *model.Incident) error
	DeleteIncident(ctx context.Context, id model.IncidentID) error
	ListIncidents(ctx context.Context, filter IncidentFilter, page, pageSize int) ([]*model.Incident, error)
	CountIncidents(ctx context.Context, filter IncidentFilter) (uint64, error)
	FindByFingerprint(ctx context.Context, fingerprint string) ([]*model.Incident, error)
}
