package runtime

import (
	"context"
	"errors"

	"github.com/chirpchirp/loralink/codec"
	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/protocol"
	"github.com/chirpchirp/loralink/radio"
	"github.com/chirpchirp/loralink/runtime/eventlog"
)

// TruthProvider looks up the ground-truth window for a given sequence
// number, for reconstruction-error accounting in LATENT mode. It returns
// (nil, false) when no ground truth is available for that sequence.
type TruthProvider func(seq uint8) ([]float64, bool)

// RxNode receives frames, decodes them in LATENT mode, and ACKs every
// successfully parsed frame.
type RxNode struct {
	runSpec         config.RunSpec
	radio           radio.Transport
	codec           codec.Codec
	logger          *eventlog.EventLogger
	clock           Clock
	truthProvider   TruthProvider
	ackSeq          uint8
	stopped         bool
	maxPayloadBytes int
}

// NewRxNode constructs an RxNode. truthProvider may be nil when no
// ground truth is available (e.g. a live field deployment).
func NewRxNode(runSpec config.RunSpec, transport radio.Transport, c codec.Codec, logger *eventlog.EventLogger, clock Clock, truthProvider TruthProvider) *RxNode {
	if clock == nil {
		clock = NewWallClock()
	}
	return &RxNode{
		runSpec:         runSpec,
		radio:           transport,
		codec:           c,
		logger:          logger,
		clock:           clock,
		truthProvider:   truthProvider,
		maxPayloadBytes: runSpec.MaxPayloadBytes,
	}
}

// Stop signals the node to stop processing further frames.
func (n *RxNode) Stop() { n.stopped = true }

func computeErrors(truth, recon []float64) (mae, mse float64, err error) {
	if len(truth) != len(recon) {
		return 0, 0, errors.New("runtime: truth/recon length mismatch")
	}
	if len(truth) == 0 {
		return 0, 0, nil
	}
	var sumAbs, sumSq float64
	for i := range truth {
		diff := truth[i] - recon[i]
		if diff < 0 {
			sumAbs += -diff
		} else {
			sumAbs += diff
		}
		sumSq += diff * diff
	}
	n := float64(len(truth))
	return sumAbs / n, sumSq / n, nil
}

// ProcessOnce drains at most one frame: parse it, ACK it, and (in LATENT
// mode) decode and score it against ground truth when available.
func (n *RxNode) ProcessOnce(ctx context.Context) error {
	if n.stopped {
		return nil
	}
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
		return nil
	}
	rxFields := map[string]any{
		"seq":           packet.Seq,
		"payload_bytes": len(packet.Payload),
		"frame_bytes":   len(frame),
	}
	if rssiProvider, ok := n.radio.(radio.RSSIProvider); ok {
		if rssi, present := rssiProvider.LastRxRSSIDBm(); present {
			rxFields["rssi_dbm"] = rssi
		}
	}
	n.logger.LogEvent("rx_ok", rxFields)

	if n.runSpec.Mode == config.ModeLatent {
		recon, err := n.codec.Decode(packet.Payload)
		if err != nil {
			event := "recon_failed"
			if codec.IsNotImplemented(err) {
				event = "recon_not_implemented"
			}
			n.logger.LogEvent(event, map[string]any{"seq": packet.Seq, "reason": err.Error()})
		} else if n.truthProvider != nil {
			if truth, ok := n.truthProvider(packet.Seq); ok {
				mae, mse, cerr := computeErrors(truth, recon)
				if cerr != nil {
					n.logger.LogEvent("recon_failed", map[string]any{"seq": packet.Seq, "reason": cerr.Error()})
				} else {
					n.logger.LogEvent("recon_done", map[string]any{"seq": packet.Seq, "mae": mae, "mse": mse})
				}
			}
		}
	}

	ackPacket := protocol.MakeAck(packet.Seq, n.ackSeq)
	ackFrame, err := ackPacket.ToBytes(n.maxPayloadBytes)
	if err != nil {
		return err
	}
	if err := n.radio.Send(ackFrame); err != nil {
		return err
	}
	n.logger.LogEvent("ack_sent", map[string]any{"ack_seq": packet.Seq})
	n.ackSeq++
	return nil
}

// Run drives ProcessOnce in a loop, sleeping stepMs between iterations,
// until Stop is called.
func (n *RxNode) Run(ctx context.Context, stepMs int64) error {
	for !n.stopped {
		if err := n.ProcessOnce(ctx); err != nil {
			return err
		}
		n.clock.SleepMs(stepMs)
	}
	return nil
}
