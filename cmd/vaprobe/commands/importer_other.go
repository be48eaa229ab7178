//go:build !unix

package commands

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/thesyncim/vaapi"
)

type dmabufImporter struct{}

func (dmabufImporter) SupportsDMABuf() bool { return false }

func (dmabufImporter) ImportDMABuf(desc *gputypes.TextureDescriptor, plane vaapi.DMABufPlane) (vaapi.GPUTexture, error) {
	return nil, errors.New("dma-buf import is not supported on this platform")
}
