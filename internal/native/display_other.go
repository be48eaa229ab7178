//go:build !linux

package native

import (
	"errors"

	"github.com/rs/zerolog"
)

var errNoWindowSystem = errors.New("window system displays are only supported on Linux")

func openX11(log zerolog.Logger) (any, func() error, error) {
	return nil, nil, errNoWindowSystem
}

func openWayland() (any, func() error, error) {
	return nil, nil, errNoWindowSystem
}
