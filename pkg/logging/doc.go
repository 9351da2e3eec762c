// Package logging provides structured logging built on Go's standard slog
// package, with a subsystem tag on every entry so log output can be
// filtered by component (OAuth, TickTick, MCPServer, Config, CLI).
//
// Initialize once at startup:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
// Then log with a subsystem identifier:
//
//	logging.Info("OAuth", "authorization flow started")
//	logging.Error("TickTick", err, "request failed: %s", path)
//
// Credentials and token values must never be passed to this package.
package logging
