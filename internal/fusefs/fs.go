package fusefs

import (
	"errors"
	"os"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/atavus-go/safefs/internal/vault"
)

// FS is the bazil.org/fuse root, backed by one vault for its lifetime.
type FS struct {
	Vault *vault.Vault
}

var _ fs.FS = (*FS)(nil)

// Root returns the node for the mount point itself.
func (f *FS) Root() (fs.Node, error) {
	return &Node{fs: f, relPath: "/"}, nil
}

// errnoOf narrows a Go error down to the syscall.Errno the kernel expects,
// defaulting to EIO the way the original's logerr() does for anything that
// isn't already an errno.
func errnoOf(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fuse.Errno(errno)
	}
	if errors.Is(err, os.ErrNotExist) {
		return fuse.ENOENT
	}
	return fuse.EIO
}

func attrFromFileInfo(a *fuse.Attr, fi os.FileInfo, logicalSize bool) {
	a.Size = uint64(fi.Size())
	if logicalSize && a.Size >= vault.HeaderSize {
		a.Size -= vault.HeaderSize
	}
	a.Mode = fi.Mode()
	a.Mtime = fi.ModTime()
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		a.Inode = st.Ino
		a.Nlink = uint32(st.Nlink)
		a.Uid = st.Uid
		a.Gid = st.Gid
	}
}
