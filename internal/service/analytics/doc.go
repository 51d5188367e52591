// Package analytics implements read-only campaign engagement rollups.
//
// Rates are computed from delivery records on every read rather than from
// the campaign aggregate counters, so the two stay independently derivable
// and the aggregate can be cross-checked against them. Unlike ingestion,
// analytics reads have no "must never fail" contract: errors surface to the
// caller as ordinary failures.
package analytics
