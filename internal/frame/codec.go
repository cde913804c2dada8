// internal/frame/codec.go
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Function codes understood by the codec.
const (
	ReadHoldingRegisters uint8 = 0x03
	ReadInputRegisters   uint8 = 0x04
)

// RequestSize is the fixed length of a read request frame.
const RequestSize = 8

var (
	ErrFrameTooShort       = errors.New("frame: too short")
	ErrChecksumMismatch    = errors.New("frame: checksum mismatch")
	ErrUnsupportedFunction = errors.New("frame: unsupported function")
	ErrEmptyPayload        = errors.New("frame: empty payload")
)

// DecodeError wraps one of the sentinel errors with frame detail.
// errors.Is matches the sentinel.
type DecodeError struct {
	Kind   error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// Response is a decoded read response.
type Response struct {
	Slave     uint8
	Function  uint8
	Registers []uint16
}

// Checksum computes the Modbus CRC-16 and returns it as [lo, hi].
func Checksum(b []byte) [2]byte {
	crc := uint16(0xFFFF)
	for _, v := range b {
		crc ^= uint16(v)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return [2]byte{byte(crc), byte(crc >> 8)}
}

// BuildRequest builds an RTU read request:
//
//	slave(1) fc(1) start(2) count(2) crc(2)
func BuildRequest(slave uint8, start, count uint16, fc uint8) []byte {
	out := make([]byte, RequestSize)
	out[0] = slave
	out[1] = fc
	binary.BigEndian.PutUint16(out[2:4], start)
	binary.BigEndian.PutUint16(out[4:6], count)

	crc := Checksum(out[:6])
	out[6] = crc[0]
	out[7] = crc[1]
	return out
}

// ExpectedLength reports the full response length once the header
// (slave, fc, byte count) is known. ok is false while fewer than 3 bytes
// are available. Non-read function codes (exceptions included) are sized
// as a 5 byte frame so the caller stops reading and the decoder rejects it.
func ExpectedLength(head []byte) (n int, ok bool) {
	if len(head) < 3 {
		return 0, false
	}
	switch head[1] {
	case ReadHoldingRegisters, ReadInputRegisters:
		n = 3 + int(head[2]) + 2
		if n < 5 {
			n = 5
		}
		return n, true
	default:
		return 5, true
	}
}

// ParseResponse validates and decodes a read response frame.
func ParseResponse(b []byte) (Response, error) {
	if len(b) < 4 {
		return Response{}, &DecodeError{Kind: ErrFrameTooShort, Detail: fmt.Sprintf("len=%d", len(b))}
	}

	body := b[:len(b)-2]
	want := Checksum(body)
	if b[len(b)-2] != want[0] || b[len(b)-1] != want[1] {
		return Response{}, &DecodeError{
			Kind:   ErrChecksumMismatch,
			Detail: fmt.Sprintf("got=%02x%02x want=%02x%02x", b[len(b)-2], b[len(b)-1], want[0], want[1]),
		}
	}

	res := Response{Slave: body[0], Function: body[1]}

	switch res.Function {
	case ReadHoldingRegisters, ReadInputRegisters:
	default:
		return Response{}, &DecodeError{Kind: ErrUnsupportedFunction, Detail: fmt.Sprintf("fc=0x%02x", res.Function)}
	}

	// A 4 byte frame carries no byte count at all.
	if len(body) < 3 || body[2] == 0 {
		return Response{}, &DecodeError{Kind: ErrEmptyPayload}
	}

	declared := int(body[2])
	data := body[3:]
	if declared < len(data) {
		data = data[:declared]
	}

	res.Registers = make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		res.Registers = append(res.Registers, binary.BigEndian.Uint16(data[i:i+2]))
	}
	return res, nil
}

// BuildResponse encodes a read response carrying regs. It is the inverse of
// ParseResponse and is used by gateway simulators.
func BuildResponse(slave, fc uint8, regs []uint16) []byte {
	out := make([]byte, 3, 3+2*len(regs)+2)
	out[0] = slave
	out[1] = fc
	out[2] = byte(2 * len(regs))
	for _, r := range regs {
		out = binary.BigEndian.AppendUint16(out, r)
	}
	crc := Checksum(out)
	return append(out, crc[0], crc[1])
}
