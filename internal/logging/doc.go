// Package logging wraps zap with context-aware methods for corethink.
//
// Logs always go to stderr: stdout carries the MCP stdio transport and must
// stay clean. Correlation fields (trace, invocation, request) are pulled from
// the context on every call, so call sites only pass what is specific to
// the event:
//
//	logger.Info(ctx, "material gathered",
//	    zap.String("kind", string(kind)),
//	    zap.Duration("elapsed", elapsed))
//
// An optional otelzap core mirrors entries to an OpenTelemetry log provider.
package logging
