package routing

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/fluxguard/incidentcore/pkg/model"
)

// regexCache memoizes compiled Matches patterns and records which invalid
// patterns were already logged, so each distinct invalid pattern is logged
// once per process (not again when a rule is re-registered), grounded on
// the teacher's masking pattern registry.
var regexCache = struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
	bad   map[string]struct{}
}{cache: make(map[string]*regexp.Regexp), bad: make(map[string]struct{})}

func evaluate(cond model.Condition, actual any) bool {
	switch cond.Operator {
	case model.OpEquals:
		return structuralEqual(actual, cond.Value)
	case model.OpNotEquals:
		return !structuralEqual(actual, cond.Value)
	case model.OpContains:
		return stringContains(actual, cond.Value)
	case model.OpNotContains:
		return !stringContains(actual, cond.Value)
	case model.OpGreaterThan:
		return numericCompare(actual, cond.Value, func(a, b float64) bool { return a > b })
	case model.OpLessThan:
		return numericCompare(actual, cond.Value, func(a, b float64) bool { return a < b })
	case model.OpIn:
		return membership(actual, cond.Value)
	case model.OpNotIn:
		return !membership(actual, cond.Value)
	case model.OpMatches:
		return matchesRegex(actual, cond.Value)
	default:
		return false
	}
}

func structuralEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

// sameKind prevents "0" == 0.0 from spuriously comparing equal via Sprint.
func sameKind(a, b any) bool {
	_, aIsNum := a.(float64)
	_, bIsNum := b.(float64)
	if aIsNum != bIsNum {
		return false
	}
	return true
}

func stringContains(actual, value any) bool {
	as, aok := actual.(string)
	vs, vok := value.(string)
	if !aok || !vok {
		return false
	}
	return strings.Contains(as, vs)
}

func numericCompare(actual, value any, cmp func(a, b float64) bool) bool {
	af, aok := toFloat(actual)
	vf, vok := toFloat(value)
	if !aok || !vok {
		return false
	}
	return cmp(af, vf)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func membership(actual, value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if structuralEqual(actual, item) {
			return true
		}
	}
	return false
}

func matchesRegex(actual, value any) bool {
	as, aok := actual.(string)
	pattern, pok := value.(string)
	if !aok || !pok {
		return false
	}
	re := compiledRegex(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(as)
}

func compiledRegex(pattern string) *regexp.Regexp {
	regexCache.mu.Lock()
	defer regexCache.mu.Unlock()
	if re, ok := regexCache.cache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		if _, logged := regexCache.bad[pattern]; !logged {
			slog.Error("routing: invalid Matches regex, condition will never match", "pattern", pattern, "error", err)
			regexCache.bad[pattern] = struct{}{}
		}
		regexCache.cache[pattern] = nil
		return nil
	}
	regexCache.cache[pattern] = re
	return re
}
