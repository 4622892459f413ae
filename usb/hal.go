package usb

import "context"

// Event is a bus-level condition reported by the controller.
type Event uint8

// Bus events.
const (
	EventNone Event = iota
	EventPowerDetected
	EventPowerRemoved
	EventReset
	EventSuspend
	EventResume
)

func (e Event) String() string {
	switch e {
	case EventPowerDetected:
		return "power-detected"
	case EventPowerRemoved:
		return "power-removed"
	case EventReset:
		return "reset"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	default:
		return "none"
	}
}

// HAL is the USB device controller.
//
// Blocking methods take a context and return its error when cancelled.
type HAL interface {
	// Init prepares the controller. Failure is a boot-time error.
	Init(ctx context.Context) error

	// Start attaches to the bus.
	Start() error

	// Stop detaches from the bus.
	Stop() error

	// SetAddress programs the device address after SET_ADDRESS completes.
	SetAddress(addr uint8) error

	// ConfigureEndpoints enables the data endpoints. nil disables them.
	ConfigureEndpoints(eps []Endpoint) error

	// ReadSetup blocks until a SETUP packet arrives.
	ReadSetup(ctx context.Context, out *SetupPacket) error

	// ReadEP0 reads the OUT data stage of the current control transfer.
	ReadEP0(ctx context.Context, buf []byte) (int, error)

	// WriteEP0 sends the IN data stage and completes the status stage.
	WriteEP0(ctx context.Context, data []byte) error

	// AckEP0 completes a control transfer with no IN data stage.
	AckEP0() error

	// StallEP0 rejects the current control transfer.
	StallEP0() error

	// Read blocks until a packet arrives on OUT endpoint addr.
	Read(ctx context.Context, addr uint8, buf []byte) (int, error)

	// Write blocks until the host collects data from IN endpoint addr.
	Write(ctx context.Context, addr uint8, data []byte) (int, error)

	// WaitEvent blocks until the next bus event.
	WaitEvent(ctx context.Context) (Event, error)

	// RemoteWakeup drives resume signalling on a suspended bus.
	RemoteWakeup(ctx context.Context) error
}
