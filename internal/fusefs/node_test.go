package fusefs

import (
	"bytes"
	"context"
	"io"
	"os"
	"syscall"
	"testing"

	"bazil.org/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atavus-go/safefs/internal/keyschedule"
	"github.com/atavus-go/safefs/internal/safelog"
	"github.com/atavus-go/safefs/internal/vault"
)

func newTestFS(t *testing.T) (*FS, *Node) {
	t.Helper()
	sched, err := keyschedule.Derive([]byte("1234567890"))
	require.NoError(t, err)
	v := vault.New(t.TempDir(), sched, 5, 1, safelog.New(io.Discard, safelog.LevelError, false))
	fsys := &FS{Vault: v}
	root, err := fsys.Root()
	require.NoError(t, err)
	return fsys, root.(*Node)
}

func createFile(t *testing.T, root *Node, name string) (*Node, *FileHandle) {
	t.Helper()
	req := &fuse.CreateRequest{Name: name, Mode: 0644, Flags: fuse.OpenReadWrite | fuse.OpenCreate}
	resp := &fuse.CreateResponse{}
	node, handle, err := root.Create(context.Background(), req, resp)
	require.NoError(t, err)
	return node.(*Node), handle.(*FileHandle)
}

func writeAt(t *testing.T, fh *FileHandle, offset int64, data []byte) {
	t.Helper()
	req := &fuse.WriteRequest{Offset: offset, Data: data}
	resp := &fuse.WriteResponse{}
	require.NoError(t, fh.Write(context.Background(), req, resp))
	assert.Equal(t, len(data), resp.Size)
}

func readAt(t *testing.T, fh *FileHandle, offset int64, size int) []byte {
	t.Helper()
	req := &fuse.ReadRequest{Offset: offset, Size: size}
	resp := &fuse.ReadResponse{}
	require.NoError(t, fh.Read(context.Background(), req, resp))
	return resp.Data
}

// TestIdenticalPlaintextDivergesAcrossFiles is the rainbow scenario: two
// files written with the same plaintext must not share a salt, rotor, or
// ciphertext body, even under the same mount/pin.
func TestIdenticalPlaintextDivergesAcrossFiles(t *testing.T) {
	_, root := newTestFS(t)
	plaintext := bytes.Repeat([]byte("the quick brown fox "), 100)

	_, fhA := createFile(t, root, "a.txt")
	writeAt(t, fhA, 0, plaintext)
	assert.Equal(t, plaintext, readAt(t, fhA, 0, len(plaintext)))
	require.NoError(t, fhA.Release(context.Background(), &fuse.ReleaseRequest{}))

	_, fhB := createFile(t, root, "b.txt")
	writeAt(t, fhB, 0, plaintext)
	assert.Equal(t, plaintext, readAt(t, fhB, 0, len(plaintext)))
	require.NoError(t, fhB.Release(context.Background(), &fuse.ReleaseRequest{}))

	rawA, err := os.ReadFile(root.child("a.txt").physical())
	require.NoError(t, err)
	rawB, err := os.ReadFile(root.child("b.txt").physical())
	require.NoError(t, err)

	require.Len(t, rawA, int(vault.HeaderSize)+len(plaintext))
	require.Len(t, rawB, int(vault.HeaderSize)+len(plaintext))

	assert.NotEqual(t, rawA[:4], rawB[:4], "salts must differ across files")
	assert.NotEqual(t, rawA[4:vault.HeaderSize], rawB[4:vault.HeaderSize], "obfuscated rotors must differ across files")
	assert.NotEqual(t, rawA[vault.HeaderSize:], rawB[vault.HeaderSize:], "ciphertext bodies must differ across files")
}

// TestRandomAccessReadWrite writes 512-byte chunks at a scatter of
// unaligned offsets, then reads them back through the same handle and
// confirms the plaintext survives the round trip regardless of alignment.
func TestRandomAccessReadWrite(t *testing.T) {
	_, root := newTestFS(t)
	_, fh := createFile(t, root, "scattered.bin")
	defer fh.Release(context.Background(), &fuse.ReleaseRequest{})

	chunk := func(seed byte) []byte {
		buf := make([]byte, 512)
		for i := range buf {
			buf[i] = seed + byte(i)
		}
		return buf
	}

	// spaced more than a chunk apart so no write clobbers another's bytes
	offsets := []int64{0, 733, 2099, 5001, 9000}
	chunks := make(map[int64][]byte, len(offsets))
	for i, off := range offsets {
		data := chunk(byte(i * 17))
		chunks[off] = data
		writeAt(t, fh, off, data)
	}

	for off, want := range chunks {
		got := readAt(t, fh, off, len(want))
		assert.Equal(t, want, got, "offset %d", off)
	}
}

// TestOpenRejectsUndersizedFileUnlessCreating confirms a file too short to
// carry a header is treated as corrupt on a plain open, not silently
// re-keyed, while an O_CREAT open of the same short file still succeeds.
func TestOpenRejectsUndersizedFileUnlessCreating(t *testing.T) {
	_, root := newTestFS(t)
	child := root.child("short.bin")
	require.NoError(t, os.WriteFile(child.physical(), []byte("too short"), 0644))

	_, err := child.Open(context.Background(), &fuse.OpenRequest{Flags: fuse.OpenReadWrite}, &fuse.OpenResponse{})
	assert.Equal(t, fuse.Errno(syscall.EIO), err)

	handle, err := child.Open(context.Background(), &fuse.OpenRequest{Flags: fuse.OpenReadWrite | fuse.OpenCreate}, &fuse.OpenResponse{})
	require.NoError(t, err)
	require.NoError(t, handle.(*FileHandle).Release(context.Background(), &fuse.ReleaseRequest{}))
}
