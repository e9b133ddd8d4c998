// Package logx configures pickupwatch's structured logging.
//
// The repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, so a cycle history can be grepped after the fact
//
// Loggers are values. The zero Logger is a no-op, which lets components accept
// an optional logger without nil checks.
package logx
