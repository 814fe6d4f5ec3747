package rotor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsInvertible(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := Generate(rng)
	for b := 0; b < Size; b++ {
		require.Equal(t, byte(b), r.Reverse[r.Forward[b]], "byte %d", b)
	}
}

func TestDeriveReverseMatchesGenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	r := Generate(rng)
	assert.Equal(t, r.Reverse, DeriveReverse(r.Forward))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	r := Generate(rng)
	var digest [DigestSize]byte
	for i := range digest {
		digest[i] = byte(rng.Intn(256))
	}
	encoded := Encode(r.Forward, digest)
	assert.NotEqual(t, r.Forward, encoded)
	decoded := Decode(encoded, digest)
	assert.Equal(t, r.Forward, decoded)
}

func TestEncodeDecodeAllZeroDigest(t *testing.T) {
	var forward [Size]byte
	for i := range forward {
		forward[i] = byte(i)
	}
	var digest [DigestSize]byte
	assert.Equal(t, forward, Decode(Encode(forward, digest), digest))
}

func TestZeroClearsTables(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	r := Generate(rng)
	r.Zero()
	var zero [Size]byte
	assert.Equal(t, zero, r.Forward)
	assert.Equal(t, zero, r.Reverse)
}
