/*
Package log provides structured logging for iris using zerolog.

The package wraps zerolog behind a global logger initialized once via
log.Init. Components obtain child loggers with WithComponent so every line
carries its origin ("store", "schema", "task", "reactor"), and typed field
helpers keep output queryable.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	storeLog := log.WithComponent("store")
	storeLog.Info().Str("path", path).Msg("segment store opened")

	log.Logger.Error().
		Err(err).
		Str("component", "schema").
		Msg("definition rejected")

The core packages log through this facility and never write to stdout
directly; user-facing output is the caller's concern.
*/
package log
