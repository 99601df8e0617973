// Package cmd implements the command-line interface of dBot. It provides
// commands for running the session server, for running a mock driver against
// it and for measuring the request throughput of a session.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the session server
//   - driver: A mock driver that connects to a session server and answers requests
//   - perf: Performance testing of sessions over the tcp or unix transport
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dbot -help for a list of all commands.
package cmd
