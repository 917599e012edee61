// Package logx wraps zerolog behind a small, reload-friendly API.
//
// The Service owns the sink configuration (console, file, telegram) and can
// swap it at runtime via Apply(). Loggers derived from the Service stay live
// across reconfiguration. The zero Logger value is a safe no-op.
package logx
