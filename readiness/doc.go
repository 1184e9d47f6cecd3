// Package readiness gates work on an asynchronously loading resource.
//
// A [Gate] starts Pending. Actions deferred while pending are queued and run,
// in order, once the gate is marked ready. A failed gate is terminal: queued
// actions are dropped and later ones are refused, leaving the rest of the
// program unaffected.
//
// [Gate.Poll] adapts resources that can only be checked: it calls a check at
// a fixed interval (25ms by default) until it reports ready, optionally
// giving up after a bounded number of attempts.
package readiness
