// Package logging sets up structured slog logging for spanlabel.
//
// Logs are JSON lines written to a size-rotated file under ~/.spanlabel/logs/.
// Interactive commands mirror them to stderr when --debug is set; the MCP
// server never touches stderr or stdout because stdout carries the protocol.
package logging
