package vault

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/atavus-go/safefs/internal/keyschedule"
	"github.com/atavus-go/safefs/internal/stream"
)

// SentinelName is the pin-verification object kept at the backing store root.
const SentinelName = ".safefs"

// ErrIncorrectPin is returned by EnsureSentinel when the sentinel exists but
// does not decipher to the expected safe digest under the supplied pin.
var ErrIncorrectPin = errors.New("vault: incorrect pin code")

// EnsureSentinel creates the sentinel object if absent, or validates the
// supplied pin against an existing one. It is the only place a pin is
// confirmed correct.
func EnsureSentinel(root string, sched keyschedule.Schedule, rounds int, rng *rand.Rand) error {
	path := filepath.Join(root, SentinelName)

	existing, err := os.OpenFile(path, os.O_RDONLY, 0o600)
	if errors.Is(err, os.ErrNotExist) {
		return createSentinel(path, sched, rounds, rng)
	}
	if err != nil {
		return fmt.Errorf("vault: opening sentinel: %w", err)
	}
	defer existing.Close()
	return validateSentinel(existing, sched, rounds)
}

func createSentinel(path string, sched keyschedule.Schedule, rounds int, rng *rand.Rand) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("vault: creating sentinel (possible concurrent mount): %w", err)
	}
	defer f.Close()

	header, err := WriteFreshHeader(f, sched, rng)
	if err != nil {
		return fmt.Errorf("vault: writing sentinel header: %w", err)
	}
	defer header.Zero()

	body := make([]byte, 16)
	copy(body, sched.SafeDigest[:])
	stream.Encipher(&header.Rotor.Forward, sched.Offsets, 0, body, rounds)
	if err := writeFullAt(f, body, HeaderSize); err != nil {
		return fmt.Errorf("vault: writing sentinel body: %w", err)
	}
	return nil
}

func validateSentinel(f *os.File, sched keyschedule.Schedule, rounds int) error {
	header, err := LoadHeader(f, sched)
	if err != nil {
		return fmt.Errorf("vault: reading sentinel header: %w", err)
	}
	defer header.Zero()

	body := make([]byte, 16)
	if err := readFullAt(f, body, HeaderSize); err != nil {
		return fmt.Errorf("vault: reading sentinel body: %w", err)
	}
	stream.Decipher(&header.Rotor.Reverse, sched.Offsets, 0, body, rounds)

	if !bytes.Equal(body, sched.SafeDigest[:]) {
		return ErrIncorrectPin
	}
	return nil
}
