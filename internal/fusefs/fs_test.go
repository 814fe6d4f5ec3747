package fusefs

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"bazil.org/fuse"
	"github.com/stretchr/testify/assert"

	"github.com/atavus-go/safefs/internal/vault"
)

func TestErrnoOfNilIsNil(t *testing.T) {
	assert.NoError(t, errnoOf(nil))
}

func TestErrnoOfPreservesSyscallErrno(t *testing.T) {
	err := &os.PathError{Op: "open", Path: "x", Err: syscall.ENOSPC}
	assert.Equal(t, fuse.Errno(syscall.ENOSPC), errnoOf(err))
}

func TestErrnoOfMapsNotExist(t *testing.T) {
	assert.Equal(t, fuse.ENOENT, errnoOf(os.ErrNotExist))
}

func TestErrnoOfDefaultsToEIO(t *testing.T) {
	assert.Equal(t, fuse.EIO, errnoOf(errors.New("boom")))
}

func TestAttrFromFileInfoSubtractsHeaderForRegularFiles(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "attr")
	assert.NoError(t, err)
	defer f.Close()
	assert.NoError(t, f.Truncate(vault.HeaderSize+42))

	fi, err := os.Stat(f.Name())
	assert.NoError(t, err)

	var a fuse.Attr
	attrFromFileInfo(&a, fi, true)
	assert.EqualValues(t, 42, a.Size)
}

func TestAttrFromFileInfoLeavesDirectorySizeAlone(t *testing.T) {
	dir := t.TempDir()
	fi, err := os.Stat(dir)
	assert.NoError(t, err)

	var a fuse.Attr
	attrFromFileInfo(&a, fi, false)
	assert.EqualValues(t, fi.Size(), a.Size)
}
