// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the slog loggers used by the server and the CLI.
//
// Two formats are supported: "console", a compact single-line format that is
// colourised when writing to a terminal, and "json" for log shippers. Every
// component tags its lines with a component attribute and, inside a request,
// the request id.
package logging
