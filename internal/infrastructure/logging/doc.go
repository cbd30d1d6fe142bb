// Package logging provides structured logging for the kernel core using
// uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Kernel subsystems log object lifecycle at Debug and anomalies at Warn.
// Invariant violations that can only be reached by a bug in the kernel
// itself go through Invariant, which is backed by DPanic: it aborts in
// development and logs loudly in production. Malformed input from an
// unprivileged caller never takes that path; it is answered with a
// status code.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("channel created", zap.Uint64("koid", uint64(k)))
//	logger.Invariant("handle table slot out of sync", zap.Uint32("value", v))
package logging
