package pkg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsDistinct(t *testing.T) {
	all := []error{
		ErrStall, ErrTimeout, ErrCancelled, ErrNoDevice, ErrNotConfigured,
		ErrSuspended, ErrInvalidEndpoint, ErrInvalidState, ErrInvalidRequest,
		ErrBufferTooSmall, ErrNotSupported, ErrSetupPacketTooShort,
		ErrAlreadyRunning, ErrInvalidParameter, ErrReset,
		ErrRemoteWakeupDisabled, ErrNotSuspended,
		ErrBusFull, ErrLagged, ErrTooManySubscribers, ErrTooManyPublishers,
		ErrTableOverflow, ErrDuplicateKey, ErrUnmappedKey, ErrSampleCount,
		ErrNoSampler, ErrMalformedRecord,
	}
	seen := make(map[string]bool, len(all))
	for _, err := range all {
		msg := err.Error()
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
}

func TestErrorsWrap(t *testing.T) {
	err := fmt.Errorf("key %q: %w", "52", ErrUnmappedKey)
	assert.ErrorIs(t, err, ErrUnmappedKey)
	assert.NotErrorIs(t, err, ErrDuplicateKey)
}
