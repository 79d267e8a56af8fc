package xscript

import "time"

// InvocationRecord is one row of the per-block-invocation trail consumed by
// the daemon's development-mode inspector (SPEC_FULL §4.10 "Dev log"):
// url/method, status, duration, retry count and cache outcome for a single
// block, regardless of namespace.
type InvocationRecord struct {
	Route        string
	Method       string
	URL          string
	Status       int
	Duration     time.Duration
	Retries      int
	CacheOutcome string // "hit" | "stale-revalidate" | "miss" | "excluded" | ""
	Error        bool
}

// InvocationLog receives one InvocationRecord per block invocation. nil on
// Context disables recording entirely (production mode carries no logger,
// per spec.md §7's production/development split).
type InvocationLog interface {
	LogInvocation(rec InvocationRecord)
}
