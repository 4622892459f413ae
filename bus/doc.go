// Package bus provides a bounded publish/subscribe channel that never
// blocks its publishers.
//
// The key filters publish toggle events from inside the scan loop, which
// must not wait on the USB side. Each subscriber owns a fixed ring; when
// it is full the newest message is dropped for that subscriber, the
// publisher gets [pkg.ErrBusFull], and the subscriber later sees one lag
// notice covering the whole run of drops:
//
//	b := bus.New[keys.Change](4, 1, 23)
//	pub, _ := b.Publisher()
//	sub, _ := b.Subscribe()
//	_ = pub.TryPublish(keys.Change{Name: 12, On: true})
//	msg, err := sub.Receive(ctx)
//	if msg.IsLag() {
//	    // msg.Lagged messages were lost
//	}
package bus
