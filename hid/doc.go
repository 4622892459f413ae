// Package hid implements the boot keyboard side of the controller.
//
// [Class] is the HID class driver for the stack's single interface: it
// serves the HID and report descriptors and answers GET/SET_REPORT,
// GET/SET_IDLE and GET/SET_PROTOCOL. [DeviceHandler] receives the device
// lifecycle callbacks and owns the suspended flag.
//
// [Keyboard] consumes key changes from the event bus. For each change it
// wakes a suspended host and waits for resume, resolves the key through
// the keymap, updates its [KeysDown] set and sends an 8-byte report:
//
//	kb := hid.NewKeyboard(hid.KeyboardConfig{
//	    Keymap:    km,
//	    Transport: stack,
//	    Waker:     stack,
//	    Suspended: handler,
//	})
//	go kb.Run(ctx, sub)
//
// More than six non-modifier keys down fill every slot with the rollover
// error code. Modifier usages go to the modifier byte.
package hid
