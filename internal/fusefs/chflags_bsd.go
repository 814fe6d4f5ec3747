//go:build darwin || freebsd || netbsd || openbsd

package fusefs

import "golang.org/x/sys/unix"

func unixChflags(path string, flags uint32) error {
	if err := unix.Chflags(path, int(flags)); err != nil {
		return errnoOf(err)
	}
	return nil
}
