// Package logging builds slog loggers with console and JSON handlers plus
// shared attribute helpers. The console handler renders a compact
// timestamp/level/component prefix and flattens grouped attributes into
// key=value pairs; the JSON handler normalizes field names for ingestion.
package logging
