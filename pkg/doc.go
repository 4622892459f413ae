// Package pkg provides shared utilities for the maghand keyboard controller.
//
// This package contains common functionality used by every stage of the
// key pipeline, from the scan scheduler to the USB transport:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for USB and key pipeline failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentHID, "report sent", "keys", 2)
//
// Per-sample diagnostics use [LevelTrace], which sits below debug and is
// normally filtered out. With [LogFormatJSON] every record is one line of
// JSON; that is the format the firmware writes to its UART and the one the
// monitor package parses.
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrBusFull) {
//	    // The event was dropped for a slow subscriber
//	}
package pkg
