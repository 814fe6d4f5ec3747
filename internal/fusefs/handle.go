package fusefs

import (
	"context"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/atavus-go/safefs/internal/stream"
	"github.com/atavus-go/safefs/internal/vault"
)

// FileHandle is the per-open-call state bridging a FUSE handle to its
// vault.Entry: the backing *os.File and the rotor pair loaded for it.
type FileHandle struct {
	node   *Node
	vault  *vault.Vault
	handle uint64
	entry  *vault.Entry
}

var (
	_ fs.Handle            = (*FileHandle)(nil)
	_ fs.HandleReader      = (*FileHandle)(nil)
	_ fs.HandleWriter      = (*FileHandle)(nil)
	_ fs.HandleReleaser    = (*FileHandle)(nil)
	_ fs.HandleFlusher     = (*FileHandle)(nil)
	_ fs.HandlePOSIXLocker = (*FileHandle)(nil)
)

// Read deciphers ciphertext read from physical offset ofs+260 back into
// plaintext at the logical offset the kernel asked for.
func (fh *FileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)
	n, err := fh.entry.File.ReadAt(buf, req.Offset+vault.HeaderSize)
	if err != nil && n == 0 {
		fh.vault.Log.Errorf("read", err, "path=%s handle=%d ofs=%d size=%d", fh.node.relPath, fh.handle, req.Offset, req.Size)
		return errnoOf(err)
	}
	buf = buf[:n]
	fh.vault.Log.DumpBlock("read", "cipher text", uint64(req.Offset), buf)
	stream.Decipher(&fh.entry.Header.Rotor.Reverse, fh.vault.Offsets(), uint64(req.Offset), buf, fh.vault.Rounds)
	fh.vault.Log.DumpBlock("read", "plain text", uint64(req.Offset), buf)
	resp.Data = buf
	return nil
}

// Write enciphers plaintext at the logical offset the kernel supplied and
// writes the ciphertext at physical offset ofs+260.
func (fh *FileHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	buf := make([]byte, len(req.Data))
	copy(buf, req.Data)
	fh.vault.Log.DumpBlock("write", "plain text", uint64(req.Offset), buf)
	stream.Encipher(&fh.entry.Header.Rotor.Forward, fh.vault.Offsets(), uint64(req.Offset), buf, fh.vault.Rounds)
	fh.vault.Log.DumpBlock("write", "cipher text", uint64(req.Offset), buf)

	n, err := fh.entry.File.WriteAt(buf, req.Offset+vault.HeaderSize)
	if err != nil {
		fh.vault.Log.Errorf("write", err, "path=%s handle=%d ofs=%d size=%d", fh.node.relPath, fh.handle, req.Offset, len(req.Data))
		return errnoOf(err)
	}
	resp.Size = n
	return nil
}

// Release closes the backing descriptor and zeroes the handle's key
// material, mirroring y_release's close() followed by delLink().
func (fh *FileHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	err := fh.entry.File.Close()
	fh.vault.Files.Delete(fh.handle)
	if err != nil {
		fh.vault.Log.Errorf("release", err, "path=%s handle=%d", fh.node.relPath, fh.handle)
		return errnoOf(err)
	}
	return nil
}

func (fh *FileHandle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return nil
}

func (fh *FileHandle) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	if err := fh.entry.File.Sync(); err != nil {
		fh.vault.Log.Errorf("fsync", err, "handle=%d", fh.handle)
		return errnoOf(err)
	}
	return nil
}

// Lock, LockWait and Unlock pass the request straight through to flock(2) on
// the backing descriptor, the Go analogue of y_lock's direct
// fcntl(info->fh,cmd,flock) forwarding. Byte-range locking isn't modeled —
// like the original, the whole open file is the unit of locking.
func (fh *FileHandle) Lock(ctx context.Context, req *fuse.LockRequest) error {
	return fh.applyLock(req.Lock.Type, false)
}

func (fh *FileHandle) LockWait(ctx context.Context, req *fuse.LockWaitRequest) error {
	return fh.applyLock(req.Lock.Type, true)
}

func (fh *FileHandle) Unlock(ctx context.Context, req *fuse.UnlockRequest) error {
	return fh.applyLock(syscall.F_UNLCK, false)
}

func (fh *FileHandle) QueryLock(ctx context.Context, req *fuse.QueryLockRequest, resp *fuse.QueryLockResponse) error {
	resp.Lock = req.Lock
	return nil
}

func (fh *FileHandle) applyLock(lockType int32, wait bool) error {
	var how int
	switch lockType {
	case syscall.F_RDLCK:
		how = syscall.LOCK_SH
	case syscall.F_WRLCK:
		how = syscall.LOCK_EX
	case syscall.F_UNLCK:
		how = syscall.LOCK_UN
	default:
		return fuse.Errno(syscall.EINVAL)
	}
	if !wait {
		how |= syscall.LOCK_NB
	}
	if err := syscall.Flock(int(fh.entry.File.Fd()), how); err != nil {
		fh.vault.Log.Errorf("lock", err, "path=%s handle=%d", fh.node.relPath, fh.handle)
		return errnoOf(err)
	}
	return nil
}
