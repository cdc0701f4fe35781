package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Marshal encodes the message into an OSC datagram.
//
// Returns:
//   - []byte: Wire bytes ready to send
//   - error: If the address is invalid or an argument has an unknown tag
func (m Message) Marshal() ([]byte, error) {
	if !ValidAddress(m.Address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, m.Address)
	}

	var buf bytes.Buffer
	writePaddedString(&buf, m.Address)

	// Type tag string: "," followed by one tag per argument.
	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for _, a := range m.Args {
		switch a.Type {
		case TagInt, TagFloat, TagString, TagBlob:
			tags = append(tags, a.Type)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTag, a.Type)
		}
	}
	writePaddedString(&buf, string(tags))

	for _, a := range m.Args {
		switch a.Type {
		case TagInt:
			writeUint32(&buf, uint32(a.Int))
		case TagFloat:
			writeUint32(&buf, math.Float32bits(a.Float))
		case TagString:
			writePaddedString(&buf, a.Str)
		case TagBlob:
			writeUint32(&buf, uint32(len(a.Blob)))
			buf.Write(a.Blob)
			pad(&buf, len(a.Blob))
		}
	}

	return buf.Bytes(), nil
}

// writePaddedString writes s with a NUL terminator, padded to a 4-byte
// boundary as OSC requires.
func writePaddedString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	pad(buf, len(s)+1)
}

// pad writes up to three NUL bytes so that n bytes of payload end on a
// 4-byte boundary.
func pad(buf *bytes.Buffer, n int) {
	for n%4 != 0 {
		buf.WriteByte(0)
		n++
	}
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
