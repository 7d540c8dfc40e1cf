// Package logging builds the application slog logger with console and JSON
// handlers, shared attribute helpers, and standardized field names.
package logging
