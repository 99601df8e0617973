// Package common provides configuration structures and utilities shared across
// the dBot transport, server and command line packages.
//
// The package focuses on:
//   - Configuration structures for the session server, channels and the mock driver
//   - Custom logging implementation built on Dragonboat's logger facade
//   - Process wide metrics exported in the prometheus text format
//
// Key Components:
//
//   - ServerConfig: Configuration of the session server, including the listen
//     endpoint, accept backlog, channel timeouts and pacing, polling defaults and
//     socket options. DefaultServerConfig returns the values the reference drivers
//     were built against (64 KiB reads, 1 MiB send buffer, 3s / 0.5s polling).
//
//   - DriverConfig: Configuration of the mock driver used for smoke tests.
//
//   - Logger: CreateLogger and InitLoggers plug a custom formatter into
//     logger.SetLoggerFactory. Library code only depends on logger.ILogger, so an
//     application can install any other backend with its own factory.
//
//   - Metrics: Counters and histograms for sessions, requests and bytes, written
//     by WriteMetrics.
package common
