// Package protocol implements the on-wire application frame: a 1-byte
// length prefix, a 1-byte rolling sequence number, and the payload itself.
package protocol

import "fmt"

// kind distinguishes the framing-error sentinels so errors.Is can match a
// specific failure mode even when the message carries per-call detail.
type kind int

const (
	kindTooShort kind = iota
	kindLengthMismatch
	kindPayloadTooLarge
	kindInvalidLimit
)

// Error is the error type for all framing failures.
type Error struct {
	kind kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is reports whether target is the same kind of framing error, regardless
// of the specific sizes embedded in the message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

func newError(k kind, format string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(format, args...)}
}

// ErrPacketTooShort is returned when a frame has fewer than the 2 header
// bytes required to even read a length and a sequence number.
var ErrPacketTooShort = newError(kindTooShort, "protocol: frame must be at least 2 bytes")

// ErrPacketLengthMismatch is returned when the declared length byte
// disagrees with the number of bytes actually present in the frame.
var ErrPacketLengthMismatch = newError(kindLengthMismatch, "protocol: frame length does not match declared LEN")

// ErrPacketPayloadTooLarge is returned when a payload exceeds the
// configured max_payload_bytes cap, either on encode or on parse.
var ErrPacketPayloadTooLarge = newError(kindPayloadTooLarge, "protocol: payload length exceeds max_payload_bytes")

// Packet is the parsed form of one application frame.
type Packet struct {
	Payload []byte
	Seq     uint8
}

func lengthMismatch(frameLen, declared int) *Error {
	return newError(kindLengthMismatch, "protocol: frame length %d does not match LEN %d", frameLen, declared)
}

func payloadTooLarge(got, limit int) *Error {
	return newError(kindPayloadTooLarge, "protocol: payload length %d exceeds max_payload_bytes %d", got, limit)
}

// checkLimit validates a max_payload_bytes cap, treating 0 as "default to
// 255" the way the original Python implementation treats None.
func checkLimit(maxPayloadBytes int) (int, error) {
	limit := maxPayloadBytes
	if limit == 0 {
		limit = 255
	}
	if limit < 0 || limit > 255 {
		return 0, newError(kindInvalidLimit, "protocol: max_payload_bytes must be 1..255, got %d", maxPayloadBytes)
	}
	return limit, nil
}

// ToBytes serialises the packet as LEN|SEQ|PAYLOAD, enforcing
// max_payload_bytes (0 means "use the 255 default").
func (p Packet) ToBytes(maxPayloadBytes int) ([]byte, error) {
	limit, err := checkLimit(maxPayloadBytes)
	if err != nil {
		return nil, err
	}
	if len(p.Payload) > limit {
		return nil, payloadTooLarge(len(p.Payload), limit)
	}
	out := make([]byte, 2+len(p.Payload))
	out[0] = byte(len(p.Payload))
	out[1] = p.Seq
	copy(out[2:], p.Payload)
	return out, nil
}

// FromBytes parses a complete application frame. frame must contain exactly
// one packet's worth of bytes (2 + LEN); shorter or longer inputs are
// framing errors, not a signal to resync — resync is the UART parser's job.
func FromBytes(frame []byte, maxPayloadBytes int) (Packet, error) {
	if len(frame) < 2 {
		return Packet{}, ErrPacketTooShort
	}
	limit, err := checkLimit(maxPayloadBytes)
	if err != nil {
		return Packet{}, err
	}
	length := int(frame[0])
	if length > limit {
		return Packet{}, payloadTooLarge(length, limit)
	}
	if len(frame) != length+2 {
		return Packet{}, lengthMismatch(len(frame), length)
	}
	payload := make([]byte, length)
	copy(payload, frame[2:])
	return Packet{Payload: payload, Seq: frame[1]}, nil
}

// MakeAck builds an ACK packet: a single-byte payload holding the data
// SEQ being acknowledged, framed under the ACK's own rolling sequence.
func MakeAck(ackSeq uint8, seq uint8) Packet {
	return Packet{Payload: []byte{ackSeq}, Seq: seq}
}
