package osc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Unmarshal decodes an OSC datagram.
//
// Messages with no type tag string (some devices send bare addresses)
// decode to a Message with zero arguments. Unknown type tags abort the
// decode: a misparsed argument would desynchronise every following field.
func Unmarshal(data []byte) (Message, error) {
	addr, rest, err := readPaddedString(data)
	if err != nil {
		return Message{}, fmt.Errorf("reading address: %w", err)
	}
	if !ValidAddress(addr) {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	msg := Message{Address: addr}

	if len(rest) == 0 || rest[0] != ',' {
		// Bare address, no arguments.
		return msg, nil
	}

	tags, rest, err := readPaddedString(rest)
	if err != nil {
		return Message{}, fmt.Errorf("reading type tags: %w", err)
	}

	for _, tag := range []byte(tags[1:]) {
		var arg Arg
		switch tag {
		case TagInt:
			var v uint32
			v, rest, err = readUint32(rest)
			if err != nil {
				return Message{}, fmt.Errorf("reading int arg: %w", err)
			}
			arg = Int(int32(v))
		case TagFloat:
			var v uint32
			v, rest, err = readUint32(rest)
			if err != nil {
				return Message{}, fmt.Errorf("reading float arg: %w", err)
			}
			arg = Float(math.Float32frombits(v))
		case TagString:
			var s string
			s, rest, err = readPaddedString(rest)
			if err != nil {
				return Message{}, fmt.Errorf("reading string arg: %w", err)
			}
			arg = String(s)
		case TagBlob:
			var n uint32
			n, rest, err = readUint32(rest)
			if err != nil {
				return Message{}, fmt.Errorf("reading blob length: %w", err)
			}
			if uint32(len(rest)) < n {
				return Message{}, fmt.Errorf("reading blob: %w", ErrTruncated)
			}
			blob := make([]byte, n)
			copy(blob, rest[:n])
			if adv := aligned(int(n)); adv <= len(rest) {
				rest = rest[adv:]
			} else {
				rest = nil
			}
			arg = Arg{Type: TagBlob, Blob: blob}
		default:
			return Message{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
		}
		msg.Args = append(msg.Args, arg)
	}

	return msg, nil
}

// readPaddedString consumes a NUL-terminated, 4-byte-aligned string.
func readPaddedString(data []byte) (string, []byte, error) {
	end := -1
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, ErrTruncated
	}

	consumed := aligned(end + 1)
	if consumed > len(data) {
		return "", nil, ErrTruncated
	}
	return string(data[:end]), data[consumed:], nil
}

// readUint32 consumes a big-endian 32-bit value.
func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], nil
}

// aligned rounds n up to the next 4-byte boundary.
func aligned(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + 4 - n%4
}
