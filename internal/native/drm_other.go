//go:build !unix

package native

import "errors"

func openRenderNode(path string) (any, func() error, error) {
	return nil, nil, errors.New("DRM render nodes are not supported on this platform")
}
