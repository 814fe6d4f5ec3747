// Package keyschedule derives the per-mount secret material — the master
// counter offsets and the pin-check digest — from the short pin supplied
// at mount time.
package keyschedule

import (
	"crypto/md5"
	"fmt"

	"github.com/atavus-go/safefs/internal/stream"
)

// PinLength is the only pin length the mount accepts.
const PinLength = 10

// Schedule holds the secret material derived once per mount.
type Schedule struct {
	Offsets    stream.Offsets
	SafeDigest [16]byte
}

// Derive computes the offsets and safe digest from pin. The caller is
// responsible for zeroing pin immediately afterwards.
func Derive(pin []byte) (Schedule, error) {
	if len(pin) != PinLength {
		return Schedule{}, fmt.Errorf("keyschedule: pin must be %d bytes, got %d", PinLength, len(pin))
	}

	var offsets stream.Offsets
	for i := 0; i < len(offsets); i++ {
		var v byte
		for j := 0; j < 6; j++ {
			v = (v << 1) + byte(i+j) + pin[(i+j)%PinLength]
		}
		offsets[i] = v
	}

	h := md5.New()
	h.Write(offsets[:])
	h.Write(pin[:8])
	h.Write(offsets[:])

	var sched Schedule
	sched.Offsets = offsets
	copy(sched.SafeDigest[:], h.Sum(nil))
	return sched, nil
}

// Zero overwrites the schedule's secret material.
func (s *Schedule) Zero() {
	s.Offsets.Zero()
	for i := range s.SafeDigest {
		s.SafeDigest[i] = 0
	}
}

// RotorDigest computes the per-file rotor obfuscation digest for salt,
// per spec: MD5(offsets || safe_digest || offsets || salt).
func (s Schedule) RotorDigest(salt [4]byte) [16]byte {
	h := md5.New()
	h.Write(s.Offsets[:])
	h.Write(s.SafeDigest[:])
	h.Write(s.Offsets[:])
	h.Write(salt[:])
	var digest [16]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
