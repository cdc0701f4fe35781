// Package osc implements the subset of the Open Sound Control 1.0 wire
// format spoken by Behringer X32 consoles.
//
// An OSC message is an address pattern (e.g. "/ch/01/config/name"),
// a type tag string (",sif"), and a sequence of 4-byte-aligned typed
// arguments. The X32 uses int32, float32 and string arguments; blobs
// appear in a few replies and are decoded but never sent.
//
// The codec is deliberately small: no bundles, no timetags, no arrays.
// The console does not use them.
//
// # Usage
//
//	data, err := osc.Message{Address: "/ch/01/config/name"}.Marshal()
//	msg, err := osc.Unmarshal(data)
package osc
