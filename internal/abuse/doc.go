// Package abuse keeps a write-side ledger of repeat rate-limit offenders.
//
// The rate limiter hands origins over a bounded channel to a single
// worker goroutine, so abuse bookkeeping latency never sits on the
// request path; a full queue drops the event rather than blocking. The
// ledger is consulted out of band (operator review), never in the hot
// path. Light abusers decay out after a grace period; heavy abusers are
// retained indefinitely pending manual action.
package abuse
