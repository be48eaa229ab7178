package vaapi

import "strconv"

// closeFD closes a raw descriptor. Replaced in tests.
var closeFD = sysClose

// OwnedFD is an owned native memory object reference (a DMA-BUF fd).
//
// It must not be copied while owned; keep it in place and pass pointers.
// Close releases the descriptor once; later calls are no-ops.
type OwnedFD struct {
	fd    int
	owned bool
}

// NewOwnedFD takes ownership of fd. Negative values produce an empty handle.
func NewOwnedFD(fd int) OwnedFD {
	if fd < 0 {
		return OwnedFD{fd: -1}
	}
	return OwnedFD{fd: fd, owned: true}
}

// Fd returns the descriptor, or -1 when nothing is owned.
func (o *OwnedFD) Fd() int {
	if !o.owned {
		return -1
	}
	return o.fd
}

// Valid reports whether a descriptor is owned.
func (o *OwnedFD) Valid() bool { return o.owned }

// Release gives up ownership without closing and returns the descriptor.
func (o *OwnedFD) Release() int {
	if !o.owned {
		return -1
	}
	fd := o.fd
	o.fd, o.owned = -1, false
	return fd
}

// Close closes the descriptor if owned.
func (o *OwnedFD) Close() error {
	if !o.owned {
		return nil
	}
	fd := o.fd
	o.fd, o.owned = -1, false
	return closeFD(fd)
}

func (o *OwnedFD) String() string {
	if !o.owned {
		return "fd(none)"
	}
	return "fd(" + strconv.Itoa(o.fd) + ")"
}
