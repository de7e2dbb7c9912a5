package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	cases := []Packet{
		{Payload: []byte{}, Seq: 0},
		{Payload: []byte{1, 2, 3}, Seq: 42},
		{Payload: bytes.Repeat([]byte{0xAB}, 200), Seq: 255},
	}
	for _, p := range cases {
		frame, err := p.ToBytes(0)
		if err != nil {
			t.Fatalf("ToBytes(%+v): %v", p, err)
		}
		got, err := FromBytes(frame, 0)
		if err != nil {
			t.Fatalf("FromBytes(%x): %v", frame, err)
		}
		if got.Seq != p.Seq || !bytes.Equal(got.Payload, p.Payload) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
		}
	}
}

func TestToBytesPayloadTooLarge(t *testing.T) {
	p := Packet{Payload: bytes.Repeat([]byte{1}, 10), Seq: 1}
	if _, err := p.ToBytes(5); !errors.Is(err, ErrPacketPayloadTooLarge) {
		t.Fatalf("expected ErrPacketPayloadTooLarge, got %v", err)
	}
}

func TestFromBytesTooShort(t *testing.T) {
	if _, err := FromBytes([]byte{1}, 0); !errors.Is(err, ErrPacketTooShort) {
		t.Fatalf("expected ErrPacketTooShort, got %v", err)
	}
}

func TestFromBytesPayloadTooLarge(t *testing.T) {
	frame := []byte{10, 1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if _, err := FromBytes(frame, 5); !errors.Is(err, ErrPacketPayloadTooLarge) {
		t.Fatalf("expected ErrPacketPayloadTooLarge, got %v", err)
	}
}

func TestFromBytesLengthMismatch(t *testing.T) {
	// declares LEN=5 but only carries 2 payload bytes
	frame := []byte{5, 1, 0xAA, 0xBB}
	if _, err := FromBytes(frame, 0); !errors.Is(err, ErrPacketLengthMismatch) {
		t.Fatalf("expected ErrPacketLengthMismatch, got %v", err)
	}
}

func TestMakeAck(t *testing.T) {
	ack := MakeAck(7, 3)
	if ack.Seq != 3 || len(ack.Payload) != 1 || ack.Payload[0] != 7 {
		t.Fatalf("unexpected ack packet: %+v", ack)
	}
}
