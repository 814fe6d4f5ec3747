package vault

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atavus-go/safefs/internal/keyschedule"
)

func TestEnsureSentinelCreatesThenValidates(t *testing.T) {
	dir := t.TempDir()
	sched, err := keyschedule.Derive([]byte("1234567890"))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	require.NoError(t, EnsureSentinel(dir, sched, 5, rng))
	require.FileExists(t, filepath.Join(dir, SentinelName))

	require.NoError(t, EnsureSentinel(dir, sched, 5, rng))
}

func TestEnsureSentinelRejectsWrongPin(t *testing.T) {
	dir := t.TempDir()
	created, err := keyschedule.Derive([]byte("1234567890"))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(2))
	require.NoError(t, EnsureSentinel(dir, created, 5, rng))

	wrong, err := keyschedule.Derive([]byte("0987654321"))
	require.NoError(t, err)
	err = EnsureSentinel(dir, wrong, 5, rng)
	assert.ErrorIs(t, err, ErrIncorrectPin)
}

func TestEnsureSentinelDifferentRoundsStillRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sched, err := keyschedule.Derive([]byte("5555555555"))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))

	require.NoError(t, EnsureSentinel(dir, sched, 8, rng))
	require.NoError(t, EnsureSentinel(dir, sched, 8, rng))
}
