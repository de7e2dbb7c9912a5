package protocol

import (
	"bytes"
	"testing"
)

func TestStreamParserSimpleFrame(t *testing.T) {
	p, err := NewStreamParser(255, false)
	if err != nil {
		t.Fatalf("NewStreamParser: %v", err)
	}
	pkt := Packet{Payload: []byte{1, 2, 3}, Seq: 9}
	frame, err := pkt.ToBytes(0)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	p.Feed(frame)

	got, ok := p.Pop()
	if !ok {
		t.Fatal("expected a frame")
	}
	if !bytes.Equal(got.Frame, frame) {
		t.Fatalf("Frame = %x, want %x", got.Frame, frame)
	}
	if got.HasRSSI {
		t.Fatal("did not expect an RSSI byte")
	}
	if _, ok := p.Pop(); ok {
		t.Fatal("expected no more frames")
	}
}

func TestStreamParserPartialBuffer(t *testing.T) {
	p, err := NewStreamParser(255, false)
	if err != nil {
		t.Fatalf("NewStreamParser: %v", err)
	}
	pkt := Packet{Payload: []byte{1, 2, 3, 4, 5}, Seq: 1}
	frame, _ := pkt.ToBytes(0)

	p.Feed(frame[:3])
	if _, ok := p.Pop(); ok {
		t.Fatal("expected no frame from a partial buffer")
	}
	p.Feed(frame[3:])
	got, ok := p.Pop()
	if !ok {
		t.Fatal("expected a frame once the buffer is complete")
	}
	if !bytes.Equal(got.Frame, frame) {
		t.Fatalf("Frame = %x, want %x", got.Frame, frame)
	}
}

func TestStreamParserResyncsOverGarbage(t *testing.T) {
	p, err := NewStreamParser(10, false)
	if err != nil {
		t.Fatalf("NewStreamParser: %v", err)
	}
	pkt := Packet{Payload: []byte{0xAA, 0xBB}, Seq: 5}
	frame, _ := pkt.ToBytes(0)

	// Garbage bytes that each exceed the max payload length (10) as a length
	// byte should be dropped one byte at a time until the real frame header
	// lines up.
	garbage := []byte{0xFF, 0x20, 0x0B}
	p.Feed(append(append([]byte{}, garbage...), frame...))

	got, ok := p.Pop()
	if !ok {
		t.Fatal("expected the parser to resync and find the frame")
	}
	if !bytes.Equal(got.Frame, frame) {
		t.Fatalf("Frame = %x, want %x", got.Frame, frame)
	}
}

func TestStreamParserRSSIByte(t *testing.T) {
	p, err := NewStreamParser(255, true)
	if err != nil {
		t.Fatalf("NewStreamParser: %v", err)
	}
	pkt := Packet{Payload: []byte{1}, Seq: 2}
	frame, _ := pkt.ToBytes(0)
	// -60 dBm encoded as byte - 256 == -60  =>  byte == 196
	p.Feed(append(append([]byte{}, frame...), 196))

	got, ok := p.Pop()
	if !ok {
		t.Fatal("expected a frame")
	}
	if !got.HasRSSI || got.RSSIDBm == nil {
		t.Fatal("expected an RSSI reading")
	}
	if *got.RSSIDBm != -60 {
		t.Fatalf("RSSIDBm = %d, want -60", *got.RSSIDBm)
	}
}

func TestStreamParserRSSIByteWaitsForTrailingByte(t *testing.T) {
	p, err := NewStreamParser(255, true)
	if err != nil {
		t.Fatalf("NewStreamParser: %v", err)
	}
	pkt := Packet{Payload: []byte{1}, Seq: 2}
	frame, _ := pkt.ToBytes(0)
	p.Feed(frame)

	if _, ok := p.Pop(); ok {
		t.Fatal("expected no frame until the RSSI byte arrives")
	}
	p.Feed([]byte{10})
	if _, ok := p.Pop(); !ok {
		t.Fatal("expected a frame once the RSSI byte arrives")
	}
}

func TestStreamParserMultipleFramesBackToBack(t *testing.T) {
	p, err := NewStreamParser(255, false)
	if err != nil {
		t.Fatalf("NewStreamParser: %v", err)
	}
	a := Packet{Payload: []byte{1}, Seq: 1}
	b := Packet{Payload: []byte{2, 2}, Seq: 2}
	fa, _ := a.ToBytes(0)
	fb, _ := b.ToBytes(0)
	p.Feed(append(append([]byte{}, fa...), fb...))

	got1, ok := p.Pop()
	if !ok || !bytes.Equal(got1.Frame, fa) {
		t.Fatalf("first frame = %x, want %x", got1.Frame, fa)
	}
	got2, ok := p.Pop()
	if !ok || !bytes.Equal(got2.Frame, fb) {
		t.Fatalf("second frame = %x, want %x", got2.Frame, fb)
	}
	if p.BufferedBytes() != 0 {
		t.Fatalf("BufferedBytes() = %d, want 0", p.BufferedBytes())
	}
}

func TestNewStreamParserRejectsBadLimit(t *testing.T) {
	if _, err := NewStreamParser(0, false); err == nil {
		t.Fatal("expected an error for max_payload_bytes=0")
	}
	if _, err := NewStreamParser(256, false); err == nil {
		t.Fatal("expected an error for max_payload_bytes=256")
	}
}
