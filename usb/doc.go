// Package usb implements a minimal USB device stack for a single
// configuration with one interface.
//
// A [Device] tracks the chapter 9 state machine (Attached, Powered,
// Default, Address, Configured, Suspended) and reports transitions to a
// [Handler]. A [Stack] drives the device over a [HAL]: one goroutine
// answers control transfers on endpoint zero, another applies bus events
// and services remote wakeup requests.
//
// Remote wakeup is requested with [Stack.RequestRemoteWakeup]. The request
// is a one-slot signal; while the bus is suspended and the host has set
// DEVICE_REMOTE_WAKEUP, the stack drives resume signalling through
// [HAL.RemoteWakeup].
//
// [Loopback] is an in-memory HAL whose other end acts as a host. It backs
// the tests and the desktop simulator:
//
//	lb := usb.NewLoopback(16)
//	stack := usb.NewStack(dev, lb)
//	go stack.Run(ctx)
//	err := lb.Enumerate(ctx, dev, 1)
package usb
