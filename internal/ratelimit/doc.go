// Package ratelimit throttles anonymous traffic.
//
// Each otherwise-anonymous client is identified by an opaque tracker token
// held in its own cookie. Every request atomically increments the
// tracker's counter in the store; a counter strictly above the limit
// rejects the request, and far enough above it the rejection is reported
// to the abuse escalator. Counters are halved on a periodic cadence and
// zeroed trackers are swept once stale.
//
// The limiter fails open: if the store cannot be reached, requests are
// admitted and the failure is logged, so a store outage cannot become a
// denial of service against legitimate traffic.
package ratelimit
