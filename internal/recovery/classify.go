// Package recovery implements the node's error recovery layer: error
// classification, per-component retry strategies, circuit breakers, and
// the rolling metrics that track how well recovery is working.
package recovery

import "strings"

// ErrorCategory buckets an error by how recovery should treat it.
type ErrorCategory int

const (
	CategoryTransient ErrorCategory = iota
	CategoryPermanent
	CategoryCritical
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryTransient:
		return "Transient"
	case CategoryPermanent:
		return "Permanent"
	case CategoryCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ClassifyError buckets err for component by a case-insensitive substring
// match against its message, matching the node's triage conventions:
// consensus/corruption/chain-validity problems are Critical, configuration
// and input-validation problems are Permanent, and anything networked or
// time-bound is Transient. Unrecognized messages default to Transient,
// since assuming an error might resolve with a retry is safer than giving
// up on it outright.
func ClassifyError(err error, component string) ErrorCategory {
	if err == nil {
		return CategoryTransient
	}
	msg := strings.ToLower(err.Error())

	for _, needle := range []string{"consensus", "corruption", "invalid chain", "double spend"} {
		if strings.Contains(msg, needle) {
			return CategoryCritical
		}
	}
	for _, needle := range []string{"config", "invalid", "not found", "unauthorized"} {
		if strings.Contains(msg, needle) {
			return CategoryPermanent
		}
	}
	for _, needle := range []string{"network", "timeout", "connection", "lock", "temporary"} {
		if strings.Contains(msg, needle) {
			return CategoryTransient
		}
	}
	return CategoryTransient
}
