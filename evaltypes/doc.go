// Package evaltypes defines the data model shared across the evaluation
// pipeline: the inbound evaluation request, the evaluation row and its state
// machine, progress reporting rows, per-heuristic findings, recommendations,
// captured evidence, external evidence references, and the signed repro pack
// record.
//
// Types in this package are pure data with validation; behavior lives in the
// orchestrator, detector, and shipper packages.
package evaltypes
