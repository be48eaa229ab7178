//go:build !unix

package vaapi

import "errors"

func sysClose(fd int) error {
	return errors.New("vaapi: closing descriptors is not supported on this platform")
}
