//go:build unix

package native

import (
	"fmt"

	"github.com/thesyncim/vaapi"
	"golang.org/x/sys/unix"
)

func openRenderNode(path string) (any, func() error, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	params := &vaapi.DRMParams{RenderFD: fd}
	return params, func() error {
		params.RenderFD = -1
		return unix.Close(fd)
	}, nil
}
