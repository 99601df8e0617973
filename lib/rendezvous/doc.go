// Package rendezvous provides a registry that maps device identifiers to live
// session handles. A session publishes its handle once the connected driver
// identified itself, and other parts of the application look the handle up by
// the device identifier or wait until the device connects.
//
// The registry is an explicit value passed to whoever needs it (usually captured
// by the session entry point closure). There is no process wide instance.
//
// Usage Example:
//
//	devices := rendezvous.New[transport.IChannel]()
//
//	server := server.NewSessionServer(config, tcp.NewTCPServerTransport(), func(ch transport.IChannel) error {
//	    id, err := ch.RequestString("getAndroidId")
//	    if err != nil {
//	        return err
//	    }
//	    devices.Publish(id, ch)
//	    defer devices.RemoveIf(id, ch)
//	    ...
//	})
//
//	// Somewhere else
//	ch, err := devices.Await(ctx, "a1b2c3", wait.DefaultSpec().WithWaitTime(time.Minute))
package rendezvous
