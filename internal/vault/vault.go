// Package vault holds the per-mount cryptographic state: the key schedule
// derived from the pin, the table of open file handles, and the shared
// pseudo-random source used to mint new salts and rotors.
package vault

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/atavus-go/safefs/internal/keyschedule"
	"github.com/atavus-go/safefs/internal/safelog"
	"github.com/atavus-go/safefs/internal/stream"
)

// Vault is the long-lived state shared by every node and handle of a mount.
type Vault struct {
	Root   string
	Rounds int

	offsets    stream.Offsets
	safeDigest [16]byte

	Files *OpenFiles
	Log   *safelog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	nextHandle uint64
}

// New builds the shared state for a mount from its derived key schedule.
// seed is supplied by the caller (cmd/safefs passes time.Now().UnixNano());
// the stream itself deliberately stays on math/rand, matching the original
// tool's non-cryptographic random() use for salts and rotor shuffles.
func New(root string, sched keyschedule.Schedule, rounds int, seed int64, log *safelog.Logger) *Vault {
	return &Vault{
		Root:       root,
		Rounds:     rounds,
		offsets:    sched.Offsets,
		safeDigest: sched.SafeDigest,
		Files:      NewOpenFiles(log),
		Log:        log,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Offsets returns the mount's counter base, used by every Encipher/Decipher
// call on file content.
func (v *Vault) Offsets() stream.Offsets {
	return v.offsets
}

// Schedule reconstructs the key schedule this vault was built from, for
// operations (header rehydration on open) that need both halves together.
func (v *Vault) Schedule() keyschedule.Schedule {
	return keyschedule.Schedule{Offsets: v.offsets, SafeDigest: v.safeDigest}
}

// NextHandle returns a fresh, mount-unique handle id for a newly opened file.
func (v *Vault) NextHandle() uint64 {
	return atomic.AddUint64(&v.nextHandle, 1)
}

// Rand runs fn with exclusive access to the mount's shared PRNG. math/rand's
// Rand is not safe for concurrent use, and a FUSE mount serves concurrent
// creates, so every rotor/salt draw goes through this lock instead of each
// node keeping its own source.
func (v *Vault) Rand(fn func(*rand.Rand)) {
	v.rngMu.Lock()
	defer v.rngMu.Unlock()
	fn(v.rng)
}

// Close zeroes the vault's key material. It does not close any open file
// handles; callers tear those down via Files before calling Close.
func (v *Vault) Close() {
	v.offsets.Zero()
	for i := range v.safeDigest {
		v.safeDigest[i] = 0
	}
}
