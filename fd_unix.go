//go:build unix

package vaapi

import "golang.org/x/sys/unix"

func sysClose(fd int) error { return unix.Close(fd) }
