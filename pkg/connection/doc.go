// Package connection schedules retries of presence operations.
//
// A network session re-attempts failed mDNS advertisements and browses
// from its pump rather than from goroutines of its own. Retry tracks when
// the next attempt is due using exponential backoff:
//
//  1. Initial delay: 250 milliseconds
//  2. Exponential increase: 500ms, 1s, 2s, ...
//  3. Maximum delay: 30 seconds
//  4. Reset to the initial delay after a successful attempt
//
// # Jitter
//
// To keep several processes on one link from retrying in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
