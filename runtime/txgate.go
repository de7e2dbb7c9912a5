package runtime

// Inflight tracks one unacked sequence number's transmission history.
type Inflight struct {
	Seq          uint8
	FirstTxMs    int64
	LastTxMs     int64
	Attempts     int
	ToAMsEst     float64
	AckTimeoutMs int64
}

// TxGate decides when the sender may transmit, tracking inflight frames
// against a guard interval, a per-send ACK timeout, and a retry budget.
type TxGate struct {
	clock       Clock
	guardMs     int64
	maxRetries  int
	maxInflight int

	lastTxStartMs *int64
	lastToAMs     float64
	inflight      map[uint8]*Inflight

	SentCount    int
	AckedCount   int
	RetriesTotal int
	TotalToAMs   float64
}

// NewTxGate constructs a TxGate. guardMs is the silence interval enforced
// after a frame's estimated time-on-air.
func NewTxGate(clock Clock, guardMs int64, maxRetries, maxInflight int) *TxGate {
	return &TxGate{
		clock:       clock,
		guardMs:     guardMs,
		maxRetries:  maxRetries,
		maxInflight: maxInflight,
		inflight:    make(map[uint8]*Inflight),
	}
}

// CanSend reports whether the gate currently permits a new transmission:
// the inflight budget isn't exhausted, and the channel has been silent
// since the last frame's time-on-air plus guard interval.
func (g *TxGate) CanSend() bool {
	if len(g.inflight) >= g.maxInflight {
		return false
	}
	if g.lastTxStartMs == nil {
		return true
	}
	now := g.clock.NowMs()
	return now >= *g.lastTxStartMs+int64(g.lastToAMs)+g.guardMs
}

// RecordSend registers a transmission of seq (first attempt or a retry)
// and returns the attempt number. ackTimeoutMs is the deadline that
// applies to this specific send: the caller recomputes it per send from
// the actual payload length whenever the RunSpec's ack_timeout_ms is
// "auto", so a retry with a different payload length is timed correctly.
func (g *TxGate) RecordSend(seq uint8, toAMsEst float64, ackTimeoutMs int64) int {
	now := g.clock.NowMs()
	var attempt int
	if inflight, ok := g.inflight[seq]; ok {
		inflight.LastTxMs = now
		inflight.Attempts++
		inflight.ToAMsEst = toAMsEst
		inflight.AckTimeoutMs = ackTimeoutMs
		g.RetriesTotal++
		attempt = inflight.Attempts
	} else {
		g.inflight[seq] = &Inflight{
			Seq:          seq,
			FirstTxMs:    now,
			LastTxMs:     now,
			Attempts:     1,
			ToAMsEst:     toAMsEst,
			AckTimeoutMs: ackTimeoutMs,
		}
		attempt = 1
	}
	g.SentCount++
	g.TotalToAMs += toAMsEst
	g.lastTxStartMs = &now
	g.lastToAMs = toAMsEst
	return attempt
}

// MarkAcked removes ackSeq from the inflight set and returns its record,
// or nil if it wasn't inflight (a duplicate or stray ACK).
func (g *TxGate) MarkAcked(ackSeq uint8) *Inflight {
	inflight, ok := g.inflight[ackSeq]
	if !ok {
		return nil
	}
	delete(g.inflight, ackSeq)
	g.AckedCount++
	return inflight
}

// ExpiredSequences returns the sequence numbers whose ACK timeout has
// elapsed and that still have retry budget remaining.
func (g *TxGate) ExpiredSequences() []uint8 {
	now := g.clock.NowMs()
	var out []uint8
	for seq, inflight := range g.inflight {
		if inflight.Attempts > g.maxRetries {
			continue
		}
		if now-inflight.LastTxMs >= inflight.AckTimeoutMs {
			out = append(out, seq)
		}
	}
	return out
}

// ExpiredFailures pops and returns the inflight records that have
// exhausted their retry budget and whose ACK timeout has elapsed.
func (g *TxGate) ExpiredFailures() []Inflight {
	now := g.clock.NowMs()
	var out []Inflight
	for seq, inflight := range g.inflight {
		if inflight.Attempts <= g.maxRetries {
			continue
		}
		if now-inflight.LastTxMs >= inflight.AckTimeoutMs {
			out = append(out, *inflight)
			delete(g.inflight, seq)
		}
	}
	return out
}

// Metrics is a snapshot of TxGate's running counters.
type Metrics struct {
	SentCount    int     `json:"sent_count"`
	AckedCount   int     `json:"acked_count"`
	RetriesTotal int     `json:"retries_total"`
	PDR          float64 `json:"pdr"`
	ETX          float64 `json:"etx"`
	TotalToAMs   float64 `json:"total_toa_ms"`
}

// Metrics computes the current packet delivery ratio and expected
// transmission count from the running counters.
func (g *TxGate) Metrics() Metrics {
	var pdr float64
	if g.SentCount > 0 {
		pdr = float64(g.AckedCount) / float64(g.SentCount)
	}
	denom := g.AckedCount
	if denom < 1 {
		denom = 1
	}
	etx := float64(g.SentCount) / float64(denom)
	return Metrics{
		SentCount:    g.SentCount,
		AckedCount:   g.AckedCount,
		RetriesTotal: g.RetriesTotal,
		PDR:          pdr,
		ETX:          etx,
		TotalToAMs:   g.TotalToAMs,
	}
}

// InflightSnapshot returns a copy of the currently inflight sequences.
func (g *TxGate) InflightSnapshot() map[uint8]Inflight {
	out := make(map[uint8]Inflight, len(g.inflight))
	for seq, inflight := range g.inflight {
		out[seq] = *inflight
	}
	return out
}
