package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atavus-go/safefs/internal/keyschedule"
	"github.com/atavus-go/safefs/internal/stream"
)

func TestNextHandleIsMonotonicAndUnique(t *testing.T) {
	sched, err := keyschedule.Derive([]byte("1234567890"))
	require.NoError(t, err)
	v := New(t.TempDir(), sched, 5, 1, nil)

	a := v.NextHandle()
	b := v.NextHandle()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}

func TestScheduleRoundTripsOffsetsAndDigest(t *testing.T) {
	sched, err := keyschedule.Derive([]byte("1234567890"))
	require.NoError(t, err)
	v := New(t.TempDir(), sched, 5, 1, nil)

	got := v.Schedule()
	assert.Equal(t, sched.Offsets, got.Offsets)
	assert.Equal(t, sched.SafeDigest, got.SafeDigest)
}

func TestCloseZeroesKeyMaterial(t *testing.T) {
	sched, err := keyschedule.Derive([]byte("1234567890"))
	require.NoError(t, err)
	v := New(t.TempDir(), sched, 5, 1, nil)

	v.Close()
	assert.Equal(t, stream.Offsets{}, v.offsets)
	assert.Equal(t, [16]byte{}, v.safeDigest)
}
