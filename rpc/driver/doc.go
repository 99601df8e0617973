// Package driver implements the peer side of the dBot protocol. A real driver is
// an Android app, a Windows automation host or a browser driver; this package
// stands in for them when smoke testing a session server (dbot driver) and in tests.
//
// Key Components:
//
//   - Driver: connects to a session server and answers every request with the
//     reply of a Handler until the server closes the session.
//
//   - EchoHandler, MapHandler: simple handlers for fixed or echoed replies.
//
//   - FileStore: keeps pushed files in memory and serves pullFile requests,
//     replying "null" for unknown paths like the real drivers do.
//
// Usage Example:
//
//	d, err := driver.Dial("tcp", "127.0.0.1:9999", 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	files := driver.NewFileStore()
//	replies := map[string][]byte{"getAndroidId": []byte("a1b2c3")}
//	err = d.Serve(files.Handler(driver.MapHandler(replies, driver.EchoHandler)))
package driver
