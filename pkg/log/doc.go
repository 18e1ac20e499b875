/*
Package log provides structured logging for FileDB using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, a configurable level, and helper
functions for the common call sites in the read/write pipeline. All
logs carry a timestamp and can be filtered by severity.

# Core Components

Global Logger:
  - Package-level zerolog.Logger, initialized once via log.Init()
  - Accessible from every FileDB package without being passed around

Context Loggers:
  - WithComponent: tag logs with a subsystem name (e.g. "cache", "facade")
  - WithStorage: tag logs with the Storage adapter's name
  - WithIndex: tag logs with the Index namespace
  - WithStoragePath: tag logs with the blob's opaque storage-path

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	cacheLog := log.WithComponent("cache")
	cacheLog.Warn().
		Str("storage_path", sp).
		Int("pid", blockingPID).
		Msg("cache file is write-locked")

	log.Logger.Error().Err(err).Msg("download failed")

# Design Patterns

The global-logger pattern keeps call sites in the lock and façade
packages terse: they reach for log.WithComponent(...) rather than
threading a *zerolog.Logger through every constructor. Context loggers
are cheap to create (no allocation beyond the one child logger) and are
safe to build on every call.

# Security

Never log raw key bytes or cache file contents; log the storage-path
and index/storage names instead, which are enough to correlate an
incident without leaking payload data.
*/
package log
