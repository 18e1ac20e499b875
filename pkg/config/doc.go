/*
Package config loads the YAML description of a single FileDB
deployment: which Index and Storage backends to wire up, the local
cache root, and logging settings.

Assembling the concrete Index and Storage adapters named by a Config
is left to the caller (main-package wiring code): this package only
parses and validates the declarative shape, the same division the
rest of the dependency surface keeps between "pure data" and "the
thing that acts on it" (see pkg/query for the same split applied to
the query DSL).
*/
package config
