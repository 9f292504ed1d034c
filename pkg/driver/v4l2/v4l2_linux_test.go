package v4l2

import (
	"syscall"
	"testing"

	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	b, ok := driver.GetManager().Lookup(Name)
	require.True(t, ok)
	assert.Equal(t, Name, b.Name())
}

func TestOpenError(t *testing.T) {
	assert.ErrorIs(t, openError("/dev/video1", syscall.ENOENT), driver.ErrNoDevice)
	assert.ErrorIs(t, openError("/dev/video1", syscall.EBUSY), driver.ErrBusy)

	err := openError("/dev/video1", syscall.EIO)
	assert.ErrorIs(t, err, syscall.EIO)
	assert.False(t, driver.IsAvailabilityError(err))
}

func TestOpenMissingDevice(t *testing.T) {
	b := &backend{devDir: t.TempDir()}
	_, err := b.Open(3)
	assert.Error(t, err)
}
