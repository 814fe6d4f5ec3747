// Package rotor implements the 256-element substitution box used as the
// confusion layer of the stream cipher: a byte permutation and its inverse,
// plus the at-rest obfuscation applied to a permutation before it is
// written into a file header.
package rotor

import "math/rand"

// Size is the number of entries in a rotor's forward and reverse tables.
const Size = 256

// DigestSize is the length of the MD5 digest used to mask a rotor on disk.
const DigestSize = 16

// Rotor is a permutation of the 256 byte values and its inverse. For every
// b, Reverse[Forward[b]] == b.
type Rotor struct {
	Forward [Size]byte
	Reverse [Size]byte
}

// Generate builds a fresh rotor from rng using a Fisher-Yates-style shuffle
// restricted to 8-bit indices. It does not produce a uniform permutation,
// only a rotor suitable for the confusion layer this cipher needs.
func Generate(rng *rand.Rand) Rotor {
	var r Rotor
	for j := 0; j < Size; j++ {
		r.Forward[j] = byte(j)
	}
	for j := 0; j < Size; j++ {
		k := byte(rng.Intn(Size))
		r.Forward[j], r.Forward[k] = r.Forward[k], r.Forward[j]
	}
	r.Reverse = deriveReverse(r.Forward)
	return r
}

// DeriveReverse recomputes the inverse permutation of forward. Called
// whenever Forward is obtained by a route other than Generate, such as
// after Decode.
func DeriveReverse(forward [Size]byte) [Size]byte {
	return deriveReverse(forward)
}

func deriveReverse(forward [Size]byte) (reverse [Size]byte) {
	for j := 0; j < Size; j++ {
		reverse[forward[j]] = byte(j)
	}
	return reverse
}

// Encode scrambles a 256-byte forward table against a 16-byte digest before
// it is written to disk. The result is not itself a permutation — it is a
// masked byte string only ever consumed by Decode.
func Encode(forward [Size]byte, digest [DigestSize]byte) [Size]byte {
	return mask(forward, digest, 1)
}

// Decode reverses Encode exactly, given the same digest.
func Decode(encoded [Size]byte, digest [DigestSize]byte) [Size]byte {
	return mask(encoded, digest, -1)
}

func mask(in [Size]byte, digest [DigestSize]byte, sign int) (out [Size]byte) {
	for i := 0; i < Size; i++ {
		delta := int(digest[i%16]) +
			2*int(digest[(i+1)%16]) +
			3*int(digest[(i+2)%16]) +
			5*int(digest[(i+3)%16]) +
			7*int(digest[(i+4)%16])
		out[i] = byte(int(in[i]) + sign*delta)
	}
	return out
}

// Zero overwrites the rotor's tables in place. Callers must do this before
// releasing the last reference to a Rotor that guarded file contents.
func (r *Rotor) Zero() {
	for i := range r.Forward {
		r.Forward[i] = 0
	}
	for i := range r.Reverse {
		r.Reverse[i] = 0
	}
}
