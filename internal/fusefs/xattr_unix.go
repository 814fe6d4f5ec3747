package fusefs

import (
	"syscall"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

// unixGetxattr sizes its buffer with a zero-length query and then reads
// once; if the attribute grows between the two calls, the ERANGE from the
// second call is returned as is.
func unixGetxattr(path, name string) ([]byte, error) {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func unixListxattr(path string) ([]string, error) {
	size, err := unix.Listxattr(path, nil)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:n]

	var names []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			names = append(names, string(buf[start:i]))
			start = i + 1
		}
	}
	return names, nil
}

// unixSetxattr ignores position: the OSXFUSE resource-fork byte offset the
// original forwards has no equivalent in the Linux xattr syscalls that
// golang.org/x/sys/unix exposes here.
func unixSetxattr(path, name string, data []byte, position, flags uint32) error {
	_ = position
	return unix.Setxattr(path, name, data, int(flags))
}

func unixRemovexattr(path, name string) error {
	return unix.Removexattr(path, name)
}

func unixAccess(path string, mask uint32) error {
	if err := unix.Access(path, mask); err != nil {
		if err == unix.EACCES {
			return syscall.EACCES
		}
		return err
	}
	return nil
}

func unixStatfs(path string, resp *fuse.StatfsResponse) error {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return errnoOf(err)
	}
	resp.Blocks = st.Blocks
	resp.Bfree = st.Bfree
	resp.Bavail = st.Bavail
	resp.Files = st.Files
	resp.Ffree = st.Ffree
	resp.Bsize = uint32(st.Bsize)
	resp.Namelen = uint32(st.Namelen)
	resp.Frsize = uint32(st.Frsize)
	return nil
}
