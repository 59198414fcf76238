// Package correlation groups related incidents using multiple weighted
// scoring strategies with merge semantics.
package correlation

import (
	"math"
	"strings"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// Config holds the correlation engine's tunables.
type Config struct {
	MinCorrelationScore      float64
	TemporalWindowSecs       int
	PatternSimilarityThresh  float64
	EnableTemporal           bool
	EnablePattern            bool
	EnableSource             bool
	EnableFingerprint        bool
	EnableTopology           bool
	AutoMergeGroups          bool
	MaxCandidates            int
}

// DefaultConfig returns the engine's out-of-the-box tunables.
func DefaultConfig() Config {
	return Config{
		MinCorrelationScore:     0.6,
		TemporalWindowSecs:      300,
		PatternSimilarityThresh: 0.7,
		EnableTemporal:          true,
		EnablePattern:           true,
		EnableSource:            true,
		EnableFingerprint:       true,
		EnableTopology:          true,
		AutoMergeGroups:         true,
		MaxCandidates:           50,
	}
}

// result is one strategy's verdict on a pair of incidents.
type result struct {
	typ    model.CorrelationType
	score  float64
	reason string
	fired  bool
}

// tokens lowercases and whitespace-splits s, keeping tokens of length >= 1.
func tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 1 {
			out = append(out, f)
		}
	}
	return out
}

// jaccard computes |A∩B| / |A∪B| over token sets. Two empty inputs are
// defined as perfectly similar (1.0); one empty and one non-empty is 0.0.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	setA := toSet(a)
	setB := toSet(b)
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// temporal scores two incidents by how close in time they were created:
// score = exp(-k*Δt), k = 3/W, Δt in seconds. Returns fired=false if Δt > W.
func temporal(a, b *model.Incident, windowSecs int) result {
	if windowSecs <= 0 {
		windowSecs = 300
	}
	w := float64(windowSecs)
	dt := math.Abs(a.CreatedAt.Sub(b.CreatedAt).Seconds())
	if dt > w {
		return result{typ: model.CorrelationTemporal}
	}
	k := 3.0 / w
	score := math.Exp(-k * dt)
	return result{typ: model.CorrelationTemporal, score: score, fired: true,
		reason: "createdAt within temporal window"}
}

// pattern scores title/description similarity plus severity/type agreement.
func pattern(a, b *model.Incident, threshold float64) result {
	titleSim := jaccard(tokens(a.Title), tokens(b.Title))
	descSim := jaccard(tokens(a.Description), tokens(b.Description))
	score := 0.6*titleSim + 0.3*descSim
	if a.Severity == b.Severity {
		score += 0.1
	}
	if a.IncidentType == b.IncidentType {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	if score < threshold {
		return result{typ: model.CorrelationPattern, score: score}
	}
	return result{typ: model.CorrelationPattern, score: score, fired: true,
		reason: "title/description similarity above threshold"}
}

// source scores exact, substring, and common-prefix source-name matches.
func source(a, b *model.Incident) result {
	sa, sb := strings.ToLower(a.Source), strings.ToLower(b.Source)
	switch {
	case sa == sb:
		return result{typ: model.CorrelationSource, score: 1.0, fired: true, reason: "exact source match"}
	case strings.Contains(sa, sb) || strings.Contains(sb, sa):
		return result{typ: model.CorrelationSource, score: 0.8, fired: true, reason: "one source contains the other"}
	default:
		minLen := len(sa)
		if len(sb) < minLen {
			minLen = len(sb)
		}
		prefix := commonPrefixLen(sa, sb)
		if minLen > 0 && prefix >= minLen/2 {
			return result{typ: model.CorrelationSource, score: 0.6, fired: true, reason: "common source prefix"}
		}
	}
	return result{typ: model.CorrelationSource}
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// fingerprintStrategy scores exact and partial fingerprint matches.
func fingerprintStrategy(a, b *model.Incident) result {
	if a.Fingerprint == "" || b.Fingerprint == "" {
		return result{typ: model.CorrelationFingerprint}
	}
	if a.Fingerprint == b.Fingerprint {
		return result{typ: model.CorrelationFingerprint, score: 1.0, fired: true, reason: "exact fingerprint match"}
	}
	score := jaccard(tokenizeFingerprint(a.Fingerprint), tokenizeFingerprint(b.Fingerprint))
	if score == 0 {
		return result{typ: model.CorrelationFingerprint}
	}
	return result{typ: model.CorrelationFingerprint, score: score, fired: true, reason: "fingerprint token overlap"}
}

func tokenizeFingerprint(fp string) []string {
	if fp == "" {
		return nil
	}
	return strings.Split(fp, "")
}

// topology scores shared-service and dependency labels between incidents.
func topology(a, b *model.Incident) result {
	if svc, ok := a.Labels["service"]; ok && svc != "" && svc == b.Labels["service"] {
		return result{typ: model.CorrelationTopology, score: 0.9, fired: true, reason: "matching service label"}
	}
	if dep, ok := a.Labels["depends_on"]; ok && dep != "" && strings.Contains(dep, b.Labels["service"]) && b.Labels["service"] != "" {
		return result{typ: model.CorrelationTopology, score: 0.8, fired: true, reason: "depends_on references the other's service"}
	}
	if dep, ok := b.Labels["depends_on"]; ok && dep != "" && strings.Contains(dep, a.Labels["service"]) && a.Labels["service"] != "" {
		return result{typ: model.CorrelationTopology, score: 0.8, fired: true, reason: "depends_on references the other's service"}
	}
	if infra, ok := a.Labels["infrastructure"]; ok && infra != "" && infra == b.Labels["infrastructure"] {
		return result{typ: model.CorrelationTopology, score: 0.7, fired: true, reason: "matching infrastructure label"}
	}
	return result{typ: model.CorrelationTopology}
}

// combine folds every fired strategy's score into one Combined verdict: if
// >= 2 strategies fired, score = min(1, mean(scores) + 0.1*(k-1)), reason
// concatenates per-strategy reasons.
func combine(fired []result) (result, bool) {
	if len(fired) < 2 {
		return result{}, false
	}
	var sum float64
	reasons := make([]string, 0, len(fired))
	for _, r := range fired {
		sum += r.score
		reasons = append(reasons, string(r.typ)+": "+r.reason)
	}
	mean := sum / float64(len(fired))
	score := mean + 0.1*float64(len(fired)-1)
	if score > 1 {
		score = 1
	}
	return result{
		typ:    model.CorrelationCombined,
		score:  score,
		fired:  true,
		reason: strings.Join(reasons, "; "),
	}, true
}
