// Package sync provides the background loops that keep the mirrored document
// fresh when the push channel alone cannot be trusted.
//
// # Core Types
//
//   - Poller: periodically fetches the full document and replaces the stored
//     snapshot when it has drifted
//   - HealthMonitor: periodically probes the document and reopens the push
//     channel when the probe fails
//   - DriftDetector: compares the stored snapshot with a fetched one
//
// # Subpackages
//
// The sync/subscription subpackage owns the push channel itself, and the
// sync/coordinator subpackage composes the channel, these loops, the
// credential manager and the state store into one synchronizer.
//
// # Loop Semantics
//
// Both loops tick on a fixed interval and never back off. A failed tick is
// logged and the loop waits for the next one; no failure stops a loop before
// its context is cancelled.
//
// The poller never calls Store.Set itself. It hands the comparison and the
// replacement to the store.Writer as one task, so a push update can never
// land between them.
package sync
