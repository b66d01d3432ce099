// Package persist provides the simulator's on-disk concerns: a per-
// component logger and a write-ahead-logged checkpoint of adaptive-loop
// progress, so a long unattended run survives an interruption.
package persist

import (
	"io"
	"os"
	"path/filepath"

	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/log"
)

// Logger wraps gitlab.com/NebulousLabs/log.Logger, the same leveled logger
// the rest of the ecosystem builds its persist.Logger on. It is constructed
// by its caller and handed to the component that uses it (api.New takes
// one) rather than shared through a package global.
type Logger struct {
	*log.Logger
}

// NewLogger wraps an already-open io.Writer as a Logger.
func NewLogger(w io.Writer) (*Logger, error) {
	l, err := log.NewLogger(w)
	if err != nil {
		return nil, errors.AddContext(err, "could not create logger")
	}
	return &Logger{l}, nil
}

// NewFileLogger opens (creating if necessary) filename and returns a Logger
// that appends to it, creating any missing parent directories first.
func NewFileLogger(filename string) (*Logger, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.AddContext(err, "could not create log directory")
		}
	}
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, errors.AddContext(err, "could not open log file")
	}
	l, err := NewLogger(f)
	if err != nil {
		return nil, errors.Compose(err, f.Close())
	}
	return l, nil
}
