// Package resilience tracks provider health and routes calls across redundant
// providers of one capability.
//
// A [HealthMonitor] keeps a failure count and last-failure time per provider.
// A provider is healthy while its count is below [HealthPolicy.MaxFailures].
// Once tripped it becomes eligible again when [HealthPolicy.RecoveryWindow]
// has passed since its last failure, but only [HealthMonitor.RecordSuccess]
// resets the count. A time-recovered provider therefore trips again on its
// next single failure. This differs from a half-open circuit breaker, which
// admits a limited number of trial requests and closes after consecutive
// successes; here every request may go to a recovered provider.
//
// A [Dispatcher] holds providers in order, primary first. [Call] starts with
// the first healthy provider (the primary if none is healthy) and, on
// failure, tries each following provider once, sequentially. When all fail
// the caller receives an [ExhaustedError] carrying the last provider's error.
// Errors wrapped with [Absent] mean "not here" and send the call on to the
// next provider without counting against the one that answered.
package resilience
