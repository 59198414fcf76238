// Package dedup implements the Deduplication & Fingerprint Engine.:
// it decides whether an incoming alert represents an already-open incident.
package dedup

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// whitespaceRe collapses runs of whitespace during normalization, following
// the teacher's pkg/slack/fingerprint.go normalizeText idiom.
var whitespaceRe = regexp.MustCompile(`\s+`)

// punctuationRe strips punctuation during title normalization.
var punctuationRe = regexp.MustCompile(`[^\w\s]`)

// normalize lowercases, strips punctuation, and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = punctuationRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fingerprint computes a deterministic, process-stable identifier from
// (normalized source, normalized title, incident type). It uses FNV-1a
// (non-cryptographic but collision-resistant enough for this purpose, and
// reproducible across processes without a shared seed) hex-encoded, so
// pinning the exact algorithm is a supplement beyond spec.md (see
// SPEC_FULL.md §4.5).
func Fingerprint(source, title string, incidentType model.Type) string {
	key := normalize(source) + "\x00" + normalize(title) + "\x00" + string(incidentType)
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return strconv.FormatUint(h.Sum64(), 16)
}
