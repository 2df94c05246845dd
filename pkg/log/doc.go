/*
Package log provides structured logging for failwatch using zerolog.

A single global Logger is configured once at startup with Init; components
derive child loggers that carry a "component" field:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("ledger")
	logger.Info().Str("host", host).Int("hits", hits).Msg("captured")

Console output (the default) is meant for operators at a terminal; JSON output
is meant for log shippers. Levels are debug, info, warn and error; unknown
level strings fall back to info.

Dropped events (not a failure, excluded host, debounced) are logged at debug
so a busy feed does not flood the log at the default level. Persistence
failures are logged at error and never returned to the capture path.
*/
package log
