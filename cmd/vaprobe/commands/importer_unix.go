//go:build unix

package commands

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/thesyncim/vaapi"
	"golang.org/x/sys/unix"
)

// dmabufImporter stands in for a GPU renderer: it checks that each exported
// plane is a live descriptor large enough for the texture it would back.
type dmabufImporter struct{}

type dmabufTexture struct {
	width, height int
	format        gputypes.TextureFormat
}

func (t *dmabufTexture) Size() (int, int) { return t.width, t.height }
func (t *dmabufTexture) Destroy()         {}

func (dmabufImporter) SupportsDMABuf() bool { return true }

func (dmabufImporter) ImportDMABuf(desc *gputypes.TextureDescriptor, plane vaapi.DMABufPlane) (vaapi.GPUTexture, error) {
	if plane.FD < 0 {
		return nil, fmt.Errorf("plane %s has no descriptor", plane.DRMFormat)
	}
	var st unix.Stat_t
	if err := unix.Fstat(plane.FD, &st); err != nil {
		return nil, fmt.Errorf("fstat dma-buf: %w", err)
	}

	// DMA-BUFs report their size through lseek.
	size, err := unix.Seek(plane.FD, 0, unix.SEEK_END)
	if err == nil {
		need := int64(plane.Offset) + int64(plane.Pitch)*int64(desc.Size.Height)
		if need > size {
			return nil, fmt.Errorf("dma-buf of %d bytes too small for %s plane needing %d", size, plane.DRMFormat, need)
		}
	}

	return &dmabufTexture{
		width:  int(desc.Size.Width),
		height: int(desc.Size.Height),
		format: desc.Format,
	}, nil
}
