//go:build linux

package shm

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testName(t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf("/shmq_seg_test_%d_%s", os.Getpid(), strings.ReplaceAll(t.Name(), "/", "_"))
	_ = Remove(name)
	t.Cleanup(func() { _ = Remove(name) })
	return name
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("/ok"))
	assert.NoError(t, ValidateName("/omnirt_rpc_req_chat"))

	for _, bad := range []string{"", "/", "noslash", "/a/b", "//"} {
		assert.ErrorIs(t, ValidateName(bad), ErrInvalidName, "%q", bad)
	}
}

func TestMapCreateAndAttach(t *testing.T) {
	name := testName(t)

	creator, err := Map(Options{Name: name, Size: 4096, AsCreator: true})
	require.NoError(t, err)
	assert.True(t, creator.Created())
	assert.Equal(t, uint64(4096), creator.Size())
	assert.True(t, Exists(name))

	creator.Bytes()[0] = 0xAB

	attacher, err := Map(Options{Name: name, Size: 0, AsCreator: false})
	require.NoError(t, err)
	assert.False(t, attacher.Created())
	// Attach ignores the requested size; the object's real size wins.
	assert.Equal(t, uint64(4096), attacher.Size())
	assert.Equal(t, byte(0xAB), attacher.Bytes()[0])

	require.NoError(t, attacher.Close())
	require.NoError(t, attacher.Close()) // idempotent
	assert.True(t, Exists(name))

	require.NoError(t, creator.Close())
	require.NoError(t, creator.Unlink())
	assert.False(t, Exists(name))
}

func TestCloseNeverMappedSegment(t *testing.T) {
	// A zero-value segment holds descriptor 0; Close must not touch it.
	var s Segment
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMapCreateCollisionFallsBackToAttach(t *testing.T) {
	name := testName(t)

	first, err := Map(Options{Name: name, Size: 4096, AsCreator: true})
	require.NoError(t, err)
	defer func() { _ = first.Close(); _ = first.Unlink() }()

	second, err := Map(Options{Name: name, Size: 4096, AsCreator: true})
	require.NoError(t, err)
	assert.False(t, second.Created())
	require.NoError(t, second.Close())
}

func TestMapAttachMissingFails(t *testing.T) {
	name := testName(t)
	_, err := Map(Options{Name: name, Size: 4096, AsCreator: false})
	assert.Error(t, err)
}

func TestMapInvalidName(t *testing.T) {
	_, err := Map(Options{Name: "bogus", Size: 4096, AsCreator: true})
	assert.ErrorIs(t, err, ErrInvalidName)
}
