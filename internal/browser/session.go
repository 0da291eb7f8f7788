// Package browser drives the source directory website through a scripted
// browser and turns its result pages into raw address fields.
package browser

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/model"
)

// ErrSessionLost is returned by Extract when the browser behind a session is
// gone. It is fatal for the run.
var ErrSessionLost = eris.New("browser: session lost")

// ErrSessionInit matches every InitError via errors.Is.
var ErrSessionInit = eris.New("browser: session init")

// InitError reports that no browser session could be created at all.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return "browser: session init: " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSessionInit) true for any InitError.
func (e *InitError) Is(target error) bool {
	return target == ErrSessionInit
}

// IsInitError reports whether err (or any error in its chain) is an InitError.
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

// Session owns one browser instance and runs one query at a time.
type Session interface {
	// Extract runs a single query. Per-key problems (timeouts, navigation
	// errors, odd pages) are reported as Failed results; the error return is
	// reserved for conditions that make the session unusable.
	Extract(ctx context.Context, key model.QueryKey) (model.ExtractionResult, error)

	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Opener creates sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Session, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}
