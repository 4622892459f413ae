package pkg

import "errors"

// USB protocol errors.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrNoDevice indicates the device is not attached to a host.
	ErrNoDevice = errors.New("device not present")

	// ErrNotConfigured indicates the device is not configured.
	ErrNotConfigured = errors.New("device not configured")

	// ErrSuspended indicates the bus is suspended and cannot carry IN traffic.
	ErrSuspended = errors.New("bus suspended")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidState indicates an invalid device state for the operation.
	ErrInvalidState = errors.New("invalid device state")

	// ErrInvalidRequest indicates an invalid or unsupported request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrAlreadyRunning indicates the stack is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrReset indicates a bus reset was received.
	ErrReset = errors.New("bus reset")

	// ErrRemoteWakeupDisabled indicates the host has not armed remote wakeup.
	ErrRemoteWakeupDisabled = errors.New("remote wakeup not enabled by host")

	// ErrNotSuspended indicates a remote wakeup was requested while the bus is active.
	ErrNotSuspended = errors.New("bus not suspended")
)

// Key pipeline errors.
var (
	// ErrBusFull indicates at least one subscriber queue was full and the
	// published message was dropped for it.
	ErrBusFull = errors.New("bus subscriber queue full")

	// ErrLagged indicates a subscriber fell behind and messages were dropped
	// from its queue.
	ErrLagged = errors.New("subscriber lagged")

	// ErrTooManySubscribers indicates the bus has no free subscriber slot.
	ErrTooManySubscribers = errors.New("too many bus subscribers")

	// ErrTooManyPublishers indicates the bus has no free publisher slot.
	ErrTooManyPublishers = errors.New("too many bus publishers")

	// ErrTableOverflow indicates a static table exceeded its fixed capacity.
	ErrTableOverflow = errors.New("static table overflow")

	// ErrDuplicateKey indicates a key name or keymap entry was declared twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrUnmappedKey indicates a key name has no entry in the active layer.
	ErrUnmappedKey = errors.New("unmapped key")

	// ErrSampleCount indicates a burst delivered a different number of
	// samples than requested.
	ErrSampleCount = errors.New("burst sample count mismatch")

	// ErrNoSampler indicates the sampling capability was not provided at boot.
	ErrNoSampler = errors.New("no sampling capability")
)

// Monitor errors.
var (
	// ErrMalformedRecord indicates a log line is not a JSON log record.
	ErrMalformedRecord = errors.New("malformed log record")
)
