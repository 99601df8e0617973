// Package server implements the session server facade. It validates the
// configuration, initializes the loggers and runs the transport layer which
// accepts drivers and calls the entry point once per connection.
//
// Key Components:
//
//   - NewSessionServer: Factory function that validates the endpoint (ErrInvalidPort
//     for TCP endpoints outside 0-65535) and binds the entry point to a transport.
//
//   - Serve: Blocks while serving sessions. Every connection runs in its own
//     goroutine; a failing or panicking entry point only ends its own session.
//
//   - Shutdown: Closes the listener and all active sessions and waits for their
//     entry points to return.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Endpoint = "0.0.0.0:9999"
//
//	s, err := server.NewSessionServer(config, tcp.NewTCPServerTransport(),
//	    client.EntryPoint(wait.DefaultSpec(), func(bot *client.Bot) error {
//	        ok, err := bot.CallBool("click", 100, 200)
//	        ...
//	    }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go s.Serve()
//	...
//	s.Shutdown(5 * time.Second)
//
// Thread Safety:
//
//	Serve should be called only once. Shutdown may be called from any goroutine.
package server
