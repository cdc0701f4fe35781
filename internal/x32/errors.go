package x32

import "errors"

// Domain errors for the x32 package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, x32.ErrNoDevice) {
//	    // no console registered yet
//	}
var (
	// ErrNoDevice is returned when an operation needs a console address
	// but none has been discovered or set.
	ErrNoDevice = errors.New("x32: no device registered")

	// ErrInvalidAddress is returned for a session write whose address
	// does not start with the OSC root delimiter.
	ErrInvalidAddress = errors.New("x32: invalid parameter address")

	// ErrInvalidBlock is returned for a routing block index outside 0..3.
	ErrInvalidBlock = errors.New("x32: invalid routing block")

	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("x32: engine closed")
)
