package vault

import (
	"fmt"
	"math/rand"
	"os"
	"syscall"

	"github.com/atavus-go/safefs/internal/keyschedule"
	"github.com/atavus-go/safefs/internal/rotor"
)

// HeaderSize is the number of bytes every backing file carries ahead of its
// ciphertext body: a 4-byte salt followed by a 256-byte obfuscated rotor.
const HeaderSize = 4 + rotor.Size

// Header is the per-file key material rehydrated from, or written to, a
// backing file's first HeaderSize bytes.
type Header struct {
	Salt        [4]byte
	RotorDigest [16]byte
	Rotor       rotor.Rotor
}

// Zero overwrites every secret field of the header.
func (h *Header) Zero() {
	for i := range h.Salt {
		h.Salt[i] = 0
	}
	for i := range h.RotorDigest {
		h.RotorDigest[i] = 0
	}
	h.Rotor.Zero()
}

// WriteFreshHeader generates a new salt and rotor, writes the header to f at
// physical offset 0, and returns the in-memory header for the caller's
// open-file entry.
func WriteFreshHeader(f *os.File, sched keyschedule.Schedule, rng *rand.Rand) (*Header, error) {
	var h Header
	for i := range h.Salt {
		h.Salt[i] = byte(rng.Intn(256))
	}
	h.RotorDigest = sched.RotorDigest(h.Salt)
	h.Rotor = rotor.Generate(rng)

	encoded := rotor.Encode(h.Rotor.Forward, h.RotorDigest)

	if err := writeFullAt(f, h.Salt[:], 0); err != nil {
		return nil, fmt.Errorf("vault: writing header salt: %w", err)
	}
	if err := writeFullAt(f, encoded[:], 4); err != nil {
		return nil, fmt.Errorf("vault: writing header rotor: %w", err)
	}
	return &h, nil
}

// LoadHeader reads an existing header from f and rehydrates the rotor pair.
func LoadHeader(f *os.File, sched keyschedule.Schedule) (*Header, error) {
	var h Header
	if err := readFullAt(f, h.Salt[:], 0); err != nil {
		return nil, syscall.EIO
	}
	h.RotorDigest = sched.RotorDigest(h.Salt)

	var encoded [rotor.Size]byte
	if err := readFullAt(f, encoded[:], 4); err != nil {
		return nil, syscall.EIO
	}
	h.Rotor.Forward = rotor.Decode(encoded, h.RotorDigest)
	h.Rotor.Reverse = rotor.DeriveReverse(h.Rotor.Forward)
	return &h, nil
}

func writeFullAt(f *os.File, buf []byte, off int64) error {
	n, err := f.WriteAt(buf, off)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return syscall.EIO
	}
	return nil
}

func readFullAt(f *os.File, buf []byte, off int64) error {
	n, _ := f.ReadAt(buf, off)
	if n != len(buf) {
		return syscall.EIO
	}
	return nil
}
