package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/chirpchirp/loralink/codec"
	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/phy"
	"github.com/chirpchirp/loralink/protocol"
	"github.com/chirpchirp/loralink/radio"
	"github.com/chirpchirp/loralink/runtime/eventlog"
	"github.com/chirpchirp/loralink/sensing"
)

// pendingWindow is one encoded window queued for transmission, carrying
// the timing metadata spec.md's PendingWindow data model requires: when it
// was built, the sensor timestamp that completed it (if the sampler has
// one), and how long encoding took.
type pendingWindow struct {
	windowID      int
	payload       []byte
	builtAtMs     int64
	sensorTSMs    *int64
	codecEncodeMs float64
}

// TxNode drives the sampling/windowing/encode/send/retry loop for the
// transmit side of a link.
type TxNode struct {
	runSpec       config.RunSpec
	radio         radio.Transport
	codec         codec.Codec
	logger        *eventlog.EventLogger
	sampler       sensing.Sampler
	datasetLogger *sensing.DatasetLogger
	clock         Clock

	gate            *TxGate
	seq             uint8
	maxPayloadBytes int
	pending         []pendingWindow
	inflightPayload map[uint8]pendingWindow
	builder         *sensing.WindowBuilder
	pre             *sensing.Preprocessor

	windowsGenerated int
	windowsSent      int
	stopped          bool
	noMoreSamples    bool
}

// NewTxNode constructs a TxNode. clock defaults to the wall clock when nil.
func NewTxNode(runSpec config.RunSpec, transport radio.Transport, c codec.Codec, logger *eventlog.EventLogger, sampler sensing.Sampler, datasetLogger *sensing.DatasetLogger, clock Clock) *TxNode {
	if clock == nil {
		clock = NewWallClock()
	}
	gate := NewTxGate(clock, int64(runSpec.Tx.GuardMs), runSpec.Tx.MaxRetries, runSpec.Tx.MaxInflight)
	return &TxNode{
		runSpec:         runSpec,
		radio:           transport,
		codec:           c,
		logger:          logger,
		sampler:         sampler,
		datasetLogger:   datasetLogger,
		clock:           clock,
		gate:            gate,
		maxPayloadBytes: runSpec.MaxPayloadBytes,
		inflightPayload: make(map[uint8]pendingWindow),
		builder:         sensing.NewWindowBuilder(runSpec.Window.Dims, runSpec.Window.W, runSpec.Window.Stride),
		pre:             sensing.NewPreprocessor(nil),
	}
}

// Stop signals the node to stop generating and sending new work.
func (n *TxNode) Stop() { n.stopped = true }

// IsDone reports whether the node has nothing left to do: either the
// configured window budget has been sent, or the sampler is exhausted; in
// both cases the pending queue must be empty and every inflight frame
// resolved (acknowledged or failed).
func (n *TxNode) IsDone() bool {
	idle := len(n.pending) == 0 && len(n.gate.InflightSnapshot()) == 0
	if n.noMoreSamples && idle {
		return true
	}
	if n.runSpec.Tx.MaxWindows == nil {
		return false
	}
	return n.windowsSent >= *n.runSpec.Tx.MaxWindows && idle
}

// ackTimeoutFor resolves the ACK deadline for a send of payloadBytes: the
// fixed configured value, or — when ack_timeout_ms is "auto" — the
// per-send estimate from the current payload length, recomputed on every
// call so a retry of a different-sized payload is timed correctly.
func (n *TxNode) ackTimeoutFor(payloadBytes int) int64 {
	if !n.runSpec.Tx.AckTimeout.Auto {
		return n.runSpec.Tx.AckTimeout.Fixed
	}
	estimate, err := phy.EstimateAckTimeoutMs(n.runSpec.Phy, payloadBytes, phy.DefaultAckFrameBytes, phy.DefaultAckMarginMs)
	if err != nil {
		return n.runSpec.Tx.AckTimeout.Fixed
	}
	return estimate
}

func (n *TxNode) sample() (int64, []float64, bool, error) {
	if ts, ok := n.sampler.(sensing.TimestampedSampler); ok {
		tsMillis, vector, err := ts.SampleWithTS()
		if err != nil {
			return 0, nil, false, err
		}
		return tsMillis, vector, true, nil
	}
	vector, err := n.sampler.Sample()
	return 0, vector, false, err
}

func (n *TxNode) queueWindow() error {
	if n.noMoreSamples {
		return nil
	}
	if n.runSpec.Tx.MaxWindows != nil && n.windowsGenerated >= *n.runSpec.Tx.MaxWindows {
		return nil
	}
	tsMillis, vector, haveTS, err := n.sample()
	if err != nil {
		if err == sensing.ErrNoMoreSamples {
			n.noMoreSamples = true
			return nil
		}
		return err
	}
	window, err := n.builder.Feed(vector)
	if err != nil {
		return err
	}
	if window == nil {
		return nil
	}
	windowID := n.windowsGenerated
	builtAtMs := n.clock.NowMs()
	if n.datasetLogger != nil {
		if err := n.datasetLogger.LogWindow(windowID, builtAtMs, window); err != nil {
			return err
		}
	}
	processed, err := n.pre.Apply(window)
	if err != nil {
		return err
	}
	encodeStart := time.Now()
	payload, err := n.codec.Encode(processed)
	codecEncodeMs := float64(time.Since(encodeStart).Microseconds()) / 1000.0
	if err != nil {
		return err
	}
	if len(payload) > n.maxPayloadBytes {
		return fmt.Errorf("runtime: payload_bytes %d exceeds max_payload_bytes %d", len(payload), n.maxPayloadBytes)
	}
	var sensorTSMs *int64
	if haveTS {
		sensorTSMs = &tsMillis
	}
	n.pending = append(n.pending, pendingWindow{
		windowID:      windowID,
		payload:       payload,
		builtAtMs:     builtAtMs,
		sensorTSMs:    sensorTSMs,
		codecEncodeMs: codecEncodeMs,
	})
	n.windowsGenerated++
	return nil
}

func (n *TxNode) handleIncoming(ctx context.Context) error {
	for {
		frame, err := n.radio.Recv(ctx, 0)
		if err != nil {
			return err
		}
		if frame == nil {
			return nil
		}
		packet, err := protocol.FromBytes(frame, n.maxPayloadBytes)
		if err != nil {
			n.logger.LogEvent("rx_parse_fail", map[string]any{"reason": err.Error()})
			continue
		}
		if len(packet.Payload) != 1 {
			continue
		}
		ackSeq := packet.Payload[0]
		inflight := n.gate.MarkAcked(ackSeq)
		if inflight == nil {
			continue
		}
		nowMs := n.clock.NowMs()
		fields := map[string]any{"ack_seq": ackSeq, "rtt_ms": nowMs - inflight.FirstTxMs}
		if window, ok := n.inflightPayload[ackSeq]; ok {
			fields["window_id"] = window.windowID
			fields["queue_ms"] = inflight.FirstTxMs - window.builtAtMs
			fields["e2e_ms"] = nowMs - window.builtAtMs
			fields["codec_encode_ms"] = window.codecEncodeMs
			if window.sensorTSMs != nil {
				fields["sensor_ts_ms"] = *window.sensorTSMs
			}
		}
		if rssiProvider, ok := n.radio.(radio.RSSIProvider); ok {
			if rssi, present := rssiProvider.LastRxRSSIDBm(); present {
				fields["rssi_dbm"] = rssi
			}
		}
		n.logger.LogEvent("ack_received", fields)
		delete(n.inflightPayload, ackSeq)
	}
}

// txSentFields builds the tx_sent event payload spec.md §4 requires,
// shared by the first-send and retry paths.
func (n *TxNode) txSentFields(window pendingWindow, seq uint8, frameBytes int, toaMs float64, attempt int, ackTimeoutMs int64) map[string]any {
	fields := map[string]any{
		"window_id":       window.windowID,
		"seq":             seq,
		"payload_bytes":   len(window.payload),
		"frame_bytes":     frameBytes,
		"toa_ms_est":      toaMs,
		"guard_ms":        n.runSpec.Tx.GuardMs,
		"attempt":         attempt,
		"ack_timeout_ms":  ackTimeoutMs,
		"age_ms":          n.clock.NowMs() - window.builtAtMs,
		"codec_encode_ms": window.codecEncodeMs,
	}
	if window.sensorTSMs != nil {
		fields["sensor_ts_ms"] = *window.sensorTSMs
	}
	return fields
}

func (n *TxNode) retryExpired() error {
	for _, seq := range n.gate.ExpiredSequences() {
		window, ok := n.inflightPayload[seq]
		if !ok {
			continue
		}
		if !n.gate.CanSend() {
			continue
		}
		toaMs, err := phy.EstimateToAMs(n.runSpec.Phy, len(window.payload))
		if err != nil {
			return err
		}
		ackTimeoutMs := n.ackTimeoutFor(len(window.payload))
		attempt := n.gate.RecordSend(seq, toaMs, ackTimeoutMs)
		packet := protocol.Packet{Payload: window.payload, Seq: seq}
		frame, err := packet.ToBytes(n.maxPayloadBytes)
		if err != nil {
			return err
		}
		if err := n.radio.Send(frame); err != nil {
			return err
		}
		n.logger.LogEvent("tx_sent", n.txSentFields(window, seq, len(frame), toaMs, attempt, ackTimeoutMs))
	}
	for _, inflight := range n.gate.ExpiredFailures() {
		fields := map[string]any{
			"seq":      inflight.Seq,
			"reason":   "max_retries_exceeded",
			"attempts": inflight.Attempts,
		}
		if window, ok := n.inflightPayload[inflight.Seq]; ok {
			fields["window_id"] = window.windowID
		}
		n.logger.LogEvent("tx_failed", fields)
		delete(n.inflightPayload, inflight.Seq)
	}
	return nil
}

func (n *TxNode) sendPending() error {
	if len(n.pending) == 0 || !n.gate.CanSend() {
		return nil
	}
	window := n.pending[0]
	n.pending = n.pending[1:]
	seq := n.seq
	n.seq++
	toaMs, err := phy.EstimateToAMs(n.runSpec.Phy, len(window.payload))
	if err != nil {
		return err
	}
	ackTimeoutMs := n.ackTimeoutFor(len(window.payload))
	attempt := n.gate.RecordSend(seq, toaMs, ackTimeoutMs)
	packet := protocol.Packet{Payload: window.payload, Seq: seq}
	frame, err := packet.ToBytes(n.maxPayloadBytes)
	if err != nil {
		return err
	}
	if err := n.radio.Send(frame); err != nil {
		return err
	}
	n.inflightPayload[seq] = window
	n.windowsSent++
	n.logger.LogEvent("tx_sent", n.txSentFields(window, seq, len(frame), toaMs, attempt, ackTimeoutMs))
	return nil
}

// ProcessOnce runs one iteration of the TX loop: queue a window if one is
// ready, drain incoming ACKs, retry expired sequences, and send the next
// pending window if the gate allows it.
func (n *TxNode) ProcessOnce(ctx context.Context) error {
	if n.stopped {
		return nil
	}
	if err := n.queueWindow(); err != nil {
		return err
	}
	if err := n.handleIncoming(ctx); err != nil {
		return err
	}
	if err := n.retryExpired(); err != nil {
		return err
	}
	return n.sendPending()
}

// Run drives ProcessOnce in a loop, sleeping stepMs between iterations,
// until Stop is called or IsDone reports true.
func (n *TxNode) Run(ctx context.Context, stepMs int64) error {
	for !n.stopped && !n.IsDone() {
		if err := n.ProcessOnce(ctx); err != nil {
			return err
		}
		n.clock.SleepMs(stepMs)
	}
	return nil
}

// Metrics returns the underlying TxGate's running counters.
func (n *TxNode) Metrics() Metrics {
	return n.gate.Metrics()
}
