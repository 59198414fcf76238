package model

import (
	"time"

	"github.com/google/uuid"
)

// CorrelationID identifies a Correlation.
type CorrelationID string

// NewCorrelationID mints a fresh CorrelationID.
func NewCorrelationID() CorrelationID { return CorrelationID(uuid.NewString()) }

// CorrelationType names the strategy (or combination) that produced a
// Correlation.
type CorrelationType string

const (
	CorrelationTemporal    CorrelationType = "temporal"
	CorrelationPattern     CorrelationType = "pattern"
	CorrelationSource      CorrelationType = "source"
	CorrelationFingerprint CorrelationType = "fingerprint"
	CorrelationTopology    CorrelationType = "topology"
	CorrelationCombined    CorrelationType = "combined"
	CorrelationManual      CorrelationType = "manual"
)

// Correlation asserts that two incidents are related.
type Correlation struct {
	ID          CorrelationID
	IncidentIDs map[IncidentID]struct{}
	Score       float64
	Type        CorrelationType
	Reason      string
	CreatedAt   time.Time
}

// GroupID identifies a CorrelationGroup.
type GroupID string

// NewGroupID mints a fresh GroupID.
func NewGroupID() GroupID { return GroupID(uuid.NewString()) }

// GroupStatus is the one-way lifecycle of a CorrelationGroup.
type GroupStatus string

const (
	GroupActive   GroupStatus = "active"
	GroupStable   GroupStatus = "stable"
	GroupResolved GroupStatus = "resolved"
)

// groupStatusRank enforces the one-way Active→Stable→Resolved transition.
var groupStatusRank = map[GroupStatus]int{
	GroupActive:   0,
	GroupStable:   1,
	GroupResolved: 2,
}

// CorrelationGroup is the transitive closure of incidents connected by
// accepted correlations.
type CorrelationGroup struct {
	ID                 GroupID
	PrimaryIncidentID  IncidentID
	Members            map[IncidentID]float64 // incident -> strongest correlation score
	AggregateScore     float64
	Status             GroupStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Size returns |members|.
func (g *CorrelationGroup) Size() int { return len(g.Members) }

// AdvanceStatus transitions to next if it is a legal forward move
// (Active→Stable→Resolved), reporting whether the transition happened.
func (g *CorrelationGroup) AdvanceStatus(next GroupStatus) bool {
	cur, ok1 := groupStatusRank[g.Status]
	want, ok2 := groupStatusRank[next]
	if !ok1 || !ok2 || want <= cur {
		return false
	}
	g.Status = next
	return true
}

// Clone returns a deep copy for snapshot readers.
func (g *CorrelationGroup) Clone() *CorrelationGroup {
	if g == nil {
		return nil
	}
	out := *g
	out.Members = make(map[IncidentID]float64, len(g.Members))
	for k, v := range g.Members {
		out.Members[k] = v
	}
	return &out
}
