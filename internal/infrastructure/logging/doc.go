// Package logging provides structured logging using uber/zap.
//
// Two modes: production (JSON, machine-parseable) and development (colored
// console). Construction never fails the caller; on error a no-op logger is
// returned so logging stays best-effort.
package logging
