// Package ioports defines the byte-stream interfaces the client runtime
// reads from and writes to, decoupling it from any concrete transport
// (a real serial port, an in-process pipe, or a mock log replay).
package ioports

import "io"

// ByteSource is a readable byte stream, e.g. a serial port's read side.
type ByteSource interface {
	io.Reader
}

// ByteSink is a writable byte stream, e.g. a serial port's write side.
type ByteSink interface {
	io.Writer
}

// Port is a bidirectional byte stream that can also be closed, matching
// what a real serial port and an io.Pipe's ends both support.
type Port interface {
	ByteSource
	ByteSink
	io.Closer
}
