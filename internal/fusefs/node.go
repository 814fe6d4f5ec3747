package fusefs

import (
	"context"
	"math/rand"
	"os"
	"runtime"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/atavus-go/safefs/internal/vault"
)

// Node is the single FUSE node type serving every path in the mount,
// mirroring the original tool's single set of path-based operations: there
// is no separate directory/file struct hierarchy, just a relative path
// resolved against the backing root on every call.
type Node struct {
	fs      *FS
	relPath string
}

var (
	_ fs.Node               = (*Node)(nil)
	_ fs.NodeStringLookuper = (*Node)(nil)
	_ fs.HandleReadDirAller = (*Node)(nil)
	_ fs.NodeMkdirer        = (*Node)(nil)
	_ fs.NodeCreater        = (*Node)(nil)
	_ fs.NodeRemover        = (*Node)(nil)
	_ fs.NodeRenamer        = (*Node)(nil)
	_ fs.NodeSymlinker      = (*Node)(nil)
	_ fs.NodeLinker         = (*Node)(nil)
	_ fs.NodeMknoder        = (*Node)(nil)
	_ fs.NodeReadlinker     = (*Node)(nil)
	_ fs.NodeSetattrer      = (*Node)(nil)
	_ fs.NodeOpener         = (*Node)(nil)
	_ fs.NodeAccesser       = (*Node)(nil)
	_ fs.NodeGetxattrer     = (*Node)(nil)
	_ fs.NodeListxattrer    = (*Node)(nil)
	_ fs.NodeSetxattrer     = (*Node)(nil)
	_ fs.NodeRemovexattrer  = (*Node)(nil)
	_ fs.NodeFsyncer        = (*Node)(nil)
	_ fs.NodeStatfser       = (*Node)(nil)
	_ fs.NodeChflagser      = (*Node)(nil)
)

func (n *Node) physical() string {
	return resolvePath(n.fs.Vault.Root, n.relPath)
}

func (n *Node) child(name string) *Node {
	return &Node{fs: n.fs, relPath: childPath(n.relPath, name)}
}

// Attr services both getattr and fgetattr: the original keeps these
// separate only because OSXFUSE's fgetattr takes the already-open file
// descriptor, an optimization this implementation doesn't need since
// os.Lstat on the resolved path is cheap enough either way.
func (n *Node) Attr(ctx context.Context, a *fuse.Attr) error {
	fi, err := os.Lstat(n.physical())
	if err != nil {
		n.fs.Vault.Log.Errorf("getattr", err, "path=%s", n.relPath)
		return errnoOf(err)
	}
	attrFromFileInfo(a, fi, fi.Mode().IsRegular())
	n.fs.Vault.Log.Debugf("getattr", "path=%s size=%d", n.relPath, a.Size)
	return nil
}

func (n *Node) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := n.child(name)
	if _, err := os.Lstat(child.physical()); err != nil {
		return nil, errnoOf(err)
	}
	return child, nil
}

func (n *Node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	f, err := os.Open(n.physical())
	if err != nil {
		n.fs.Vault.Log.Errorf("readdir", err, "path=%s", n.relPath)
		return nil, errnoOf(err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, errnoOf(err)
	}
	out := make([]fuse.Dirent, 0, len(infos))
	for _, fi := range infos {
		dt := fuse.DT_File
		switch {
		case fi.Mode().IsDir():
			dt = fuse.DT_Dir
		case fi.Mode()&os.ModeSymlink != 0:
			dt = fuse.DT_Link
		}
		out = append(out, fuse.Dirent{Name: displayName(fi.Name()), Type: dt})
	}
	return out, nil
}

func (n *Node) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	child := n.child(req.Name)
	if err := os.Mkdir(child.physical(), os.FileMode(req.Mode.Perm())); err != nil {
		n.fs.Vault.Log.Errorf("mkdir", err, "path=%s", child.relPath)
		return nil, errnoOf(err)
	}
	return child, nil
}

func (n *Node) Mknod(ctx context.Context, req *fuse.MknodRequest) (fs.Node, error) {
	child := n.child(req.Name)
	if err := syscall.Mknod(child.physical(), uint32(req.Mode), int(req.Rdev)); err != nil {
		n.fs.Vault.Log.Errorf("mknod", err, "path=%s", child.relPath)
		return nil, errnoOf(err)
	}
	return child, nil
}

// Create opens a fresh backing file and writes its header, matching
// y_create's unconditional O_CREAT|O_TRUNC|O_RDWR regardless of the flags
// the kernel requested.
func (n *Node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	child := n.child(req.Name)
	path := child.physical()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, os.FileMode(req.Mode.Perm()))
	if err != nil {
		n.fs.Vault.Log.Errorf("create", err, "path=%s", child.relPath)
		return nil, nil, errnoOf(err)
	}

	var header *vault.Header
	var headerErr error
	n.fs.Vault.Rand(func(rng *rand.Rand) {
		header, headerErr = vault.WriteFreshHeader(f, n.fs.Vault.Schedule(), rng)
	})
	if headerErr != nil {
		f.Close()
		os.Remove(path)
		n.fs.Vault.Log.Errorf("create", headerErr, "path=%s", child.relPath)
		return nil, nil, errnoOf(headerErr)
	}

	handle := n.fs.Vault.NextHandle()
	entry := n.fs.Vault.Files.Add(handle, &vault.Entry{File: f, Header: header})
	fh := &FileHandle{node: child, vault: n.fs.Vault, handle: handle, entry: entry}
	n.fs.Vault.Log.Infof("create", "path=%s handle=%d", child.relPath, handle)
	return child, fh, nil
}

func (n *Node) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	child := n.child(req.Name)
	if err := os.Remove(child.physical()); err != nil {
		n.fs.Vault.Log.Errorf("remove", err, "path=%s", child.relPath)
		return errnoOf(err)
	}
	return nil
}

func (n *Node) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	target, ok := newDir.(*Node)
	if !ok {
		return fuse.EIO
	}
	oldPath := n.child(req.OldName).physical()
	newPath := target.child(req.NewName).physical()
	if err := os.Rename(oldPath, newPath); err != nil {
		n.fs.Vault.Log.Errorf("rename", err, "old=%s new=%s", oldPath, newPath)
		return errnoOf(err)
	}
	return nil
}

func (n *Node) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fs.Node, error) {
	child := n.child(req.NewName)
	if err := os.Symlink(req.Target, child.physical()); err != nil {
		n.fs.Vault.Log.Errorf("symlink", err, "path=%s", child.relPath)
		return nil, errnoOf(err)
	}
	return child, nil
}

func (n *Node) Link(ctx context.Context, req *fuse.LinkRequest, old fs.Node) (fs.Node, error) {
	src, ok := old.(*Node)
	if !ok {
		return nil, fuse.EIO
	}
	child := n.child(req.NewName)
	if err := os.Link(src.physical(), child.physical()); err != nil {
		n.fs.Vault.Log.Errorf("link", err, "path=%s", child.relPath)
		return nil, errnoOf(err)
	}
	return child, nil
}

func (n *Node) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	target, err := os.Readlink(n.physical())
	if err != nil {
		n.fs.Vault.Log.Errorf("readlink", err, "path=%s", n.relPath)
		return "", errnoOf(err)
	}
	return target, nil
}

// Setattr handles chmod/chown/truncate/utimes. chown(0,0) is skipped
// outright, matching the original: a non-root mount process cannot chown
// anyway, and the original treats the all-zero request as a platform no-op
// rather than surfacing EPERM.
func (n *Node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	path := n.physical()

	if req.Valid.Mode() {
		if err := os.Chmod(path, req.Mode); err != nil {
			n.fs.Vault.Log.Errorf("setattr", err, "chmod path=%s", n.relPath)
			return errnoOf(err)
		}
	}
	if req.Valid.Uid() || req.Valid.Gid() {
		if req.Uid != 0 || req.Gid != 0 {
			if err := os.Chown(path, int(req.Uid), int(req.Gid)); err != nil {
				n.fs.Vault.Log.Errorf("setattr", err, "chown path=%s", n.relPath)
				return errnoOf(err)
			}
		}
	}
	if req.Valid.Size() {
		if err := os.Truncate(path, int64(req.Size)+vault.HeaderSize); err != nil {
			n.fs.Vault.Log.Errorf("setattr", err, "truncate path=%s", n.relPath)
			return errnoOf(err)
		}
	}
	if req.Valid.Mtime() || req.Valid.Atime() {
		if err := os.Chtimes(path, req.Atime, req.Mtime); err != nil {
			n.fs.Vault.Log.Errorf("setattr", err, "utime path=%s", n.relPath)
			return errnoOf(err)
		}
	}
	return n.Attr(ctx, &resp.Attr)
}

func (n *Node) Access(ctx context.Context, req *fuse.AccessRequest) error {
	if err := unixAccess(n.physical(), req.Mask); err != nil {
		if err != syscall.EACCES {
			n.fs.Vault.Log.Errorf("access", err, "path=%s mask=%d", n.relPath, req.Mask)
		}
		return errnoOf(err)
	}
	return nil
}

func (n *Node) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	f, err := os.Open(n.physical())
	if err != nil {
		return errnoOf(err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		n.fs.Vault.Log.Errorf("fsync", err, "path=%s", n.relPath)
		return errnoOf(err)
	}
	return nil
}

func (n *Node) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	return unixStatfs(n.physical(), resp)
}

// Chflags sets BSD-style file flags. chflags(2) only exists on BSD/macOS;
// on every other platform, including Linux, this stays a no-op returning
// ENOTSUP, same as the original did whenever it was built for a kernel
// without the syscall.
func (n *Node) Chflags(ctx context.Context, req *fuse.ChflagsRequest) error {
	if runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" && runtime.GOOS != "netbsd" && runtime.GOOS != "openbsd" {
		return fuse.Errno(syscall.ENOTSUP)
	}
	return unixChflags(n.physical(), req.Flags)
}

// Open loads the existing header for path, or, if flags request creation of
// a file that races past Create (an O_CREAT open of a path that didn't
// exist a moment ago), writes a fresh one. A file that exists but is too
// short to carry a header is corrupt, not new, and is rejected with EIO
// unless the open itself is a create — matching y_open's "failed to load
// rotor settings" branch rather than silently fabricating a header over it.
// Either way the kernel-requested O_TRUNC is deferred until the header has
// been written or loaded, matching y_open's trick of stripping O_TRUNC
// before the open and truncating the file to just the header afterward.
func (n *Node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	path := n.physical()

	existing, statErr := os.Stat(path)
	loaded := statErr == nil && existing.Size() >= vault.HeaderSize
	truncate := req.Flags&fuse.OpenTruncate != 0

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		n.fs.Vault.Log.Errorf("open", err, "path=%s", n.relPath)
		return nil, errnoOf(err)
	}

	var header *vault.Header
	switch {
	case loaded:
		header, err = vault.LoadHeader(f, n.fs.Vault.Schedule())
	case req.Flags&fuse.OpenCreate != 0:
		n.fs.Vault.Rand(func(rng *rand.Rand) {
			header, err = vault.WriteFreshHeader(f, n.fs.Vault.Schedule(), rng)
		})
	default:
		f.Close()
		n.fs.Vault.Log.Errorf("open", syscall.EIO, "failed to load rotor settings path=%s", n.relPath)
		return nil, fuse.Errno(syscall.EIO)
	}
	if err != nil {
		f.Close()
		n.fs.Vault.Log.Errorf("open", err, "path=%s", n.relPath)
		return nil, errnoOf(err)
	}

	if truncate {
		if err := f.Truncate(vault.HeaderSize); err != nil {
			f.Close()
			n.fs.Vault.Log.Errorf("open", err, "truncate path=%s", n.relPath)
			return nil, errnoOf(err)
		}
	}

	handle := n.fs.Vault.NextHandle()
	entry := n.fs.Vault.Files.Add(handle, &vault.Entry{File: f, Header: header})
	resp.Flags |= fuse.OpenDirectIO
	n.fs.Vault.Log.Infof("open", "path=%s handle=%d", n.relPath, handle)
	return &FileHandle{node: n, vault: n.fs.Vault, handle: handle, entry: entry}, nil
}
