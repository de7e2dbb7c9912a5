package radio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/chirpchirp/loralink/protocol"
)

// UARTTransport is a Transport backed by an io.ReadWriteCloser — a real
// serial port, or anything else that looks like one. Frames are written
// whole; reads run a background goroutine that feeds a StreamParser and
// hands complete frames to Recv over a channel.
type UARTTransport struct {
	rwc    io.ReadWriteCloser
	parser *protocol.StreamParser

	mu          sync.Mutex
	lastRSSIDBm *int

	frames chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

// NewUARTTransport wraps rwc, parsing frames of up to maxPayloadBytes of
// payload. When rssiByteEnabled is true, each frame is expected to carry a
// trailing RSSI byte.
func NewUARTTransport(rwc io.ReadWriteCloser, maxPayloadBytes int, rssiByteEnabled bool) (*UARTTransport, error) {
	parser, err := protocol.NewStreamParser(maxPayloadBytes, rssiByteEnabled)
	if err != nil {
		return nil, err
	}
	t := &UARTTransport{
		rwc:    rwc,
		parser: parser,
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *UARTTransport) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := t.rwc.Read(buf)
		if n > 0 {
			t.parser.Feed(buf[:n])
			for {
				parsed, ok := t.parser.Pop()
				if !ok {
					break
				}
				if parsed.HasRSSI {
					t.mu.Lock()
					t.lastRSSIDBm = parsed.RSSIDBm
					t.mu.Unlock()
				}
				select {
				case t.frames <- parsed.Frame:
				case <-t.closed:
					return
				}
			}
		}
		if err != nil {
			select {
			case t.errs <- err:
			default:
			}
			return
		}
	}
}

// Send writes frame to the underlying stream as-is; callers are expected
// to have already framed it with protocol.Packet.ToBytes.
func (t *UARTTransport) Send(frame []byte) error {
	_, err := t.rwc.Write(frame)
	return err
}

// Recv waits up to timeoutMs for a parsed frame. timeoutMs == 0 polls
// without blocking.
func (t *UARTTransport) Recv(ctx context.Context, timeoutMs int64) ([]byte, error) {
	var timer <-chan time.Time
	if timeoutMs > 0 {
		ticker := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer ticker.Stop()
		timer = ticker.C
	} else {
		closedTimer := make(chan time.Time)
		close(closedTimer)
		timer = closedTimer
	}
	select {
	case frame := <-t.frames:
		return frame, nil
	case err := <-t.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		select {
		case frame := <-t.frames:
			return frame, nil
		default:
			return nil, nil
		}
	}
}

// LastRxRSSIDBm reports the RSSI of the most recently received frame, if
// the transport is configured to parse a trailing RSSI byte.
func (t *UARTTransport) LastRxRSSIDBm() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRSSIDBm == nil {
		return 0, false
	}
	return *t.lastRSSIDBm, true
}

// Close closes the underlying stream and stops the read loop.
func (t *UARTTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		err = t.rwc.Close()
	})
	return err
}

var (
	_ Transport    = (*UARTTransport)(nil)
	_ RSSIProvider = (*UARTTransport)(nil)
)
