// Package unix implements a Unix domain socket connector for the dBot session
// server. It serves the same framing as the tcp package and is meant for drivers
// (or test harnesses) running on the same host.
package unix
