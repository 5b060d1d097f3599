// Package logging configures slog for claimsync runs.
//
// Without --debug, logs go to stderr only: human-readable text when stderr is
// a terminal, JSON lines otherwise. With --debug, JSON logs are also written
// to a size-rotated file under ~/.claimsync/logs/.
package logging
