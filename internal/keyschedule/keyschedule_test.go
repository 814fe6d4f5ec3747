package keyschedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveRejectsWrongLength(t *testing.T) {
	_, err := Derive([]byte("short"))
	require.Error(t, err)
}

func TestDeriveIsDeterministic(t *testing.T) {
	pin := []byte("1234567890")
	a, err := Derive(pin)
	require.NoError(t, err)
	b, err := Derive(pin)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDifferentPinsYieldDifferentDigests(t *testing.T) {
	a, err := Derive([]byte("1234567890"))
	require.NoError(t, err)
	b, err := Derive([]byte("1234567891"))
	require.NoError(t, err)
	assert.NotEqual(t, a.SafeDigest, b.SafeDigest)
	assert.NotEqual(t, a.Offsets, b.Offsets)
}

func TestRotorDigestVariesWithSalt(t *testing.T) {
	sched, err := Derive([]byte("1234567890"))
	require.NoError(t, err)
	d1 := sched.RotorDigest([4]byte{1, 2, 3, 4})
	d2 := sched.RotorDigest([4]byte{1, 2, 3, 5})
	assert.NotEqual(t, d1, d2)
}
