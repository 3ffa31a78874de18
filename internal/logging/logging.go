// Package logging wires log/slog to hermannm.dev/devlog, the handler
// used throughout the corpus's CLI tools for readable local output
// (grounded on kgiusti-go-fdo-server/cmd/root.go).
package logging

import (
	"io"
	"log/slog"

	"hermannm.dev/devlog"
)

// Level is shared so a CLI's --debug flag can toggle verbosity after
// Init has installed the default logger.
var Level slog.LevelVar

// Init installs a devlog-backed slog.Logger as the process default,
// writing to w at the current Level.
func Init(w io.Writer) {
	slog.SetDefault(slog.New(devlog.NewHandler(w, &devlog.Options{
		Level: &Level,
	})))
}

// SetDebug toggles the shared Level between Info and Debug.
func SetDebug(debug bool) {
	if debug {
		Level.Set(slog.LevelDebug)
	} else {
		Level.Set(slog.LevelInfo)
	}
}
