//go:build !profile

package prof

import (
	"errors"

	"github.com/ardnew/maghand/pkg"
)

// ErrActive indicates a session is already running. Never returned here.
var ErrActive = errors.New("profiling session already active")

// Compiled reports whether profiling support is built in.
const Compiled = false

// Session records nothing without the "profile" build tag.
type Session struct{}

// Start returns an empty session, warning if profiles were requested.
func Start(opts Options) (*Session, error) {
	if opts.Enabled() {
		pkg.LogWarn(pkg.ComponentBoard, "profiling not compiled in, rebuild with -tags profile")
	}
	return &Session{}, nil
}

// Stop does nothing.
func (*Session) Stop() error { return nil }
