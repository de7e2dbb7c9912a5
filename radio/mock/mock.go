// Package mock provides an in-process radio link for tests and offline
// experiments: two Transport endpoints connected through a configurable
// loss model and fixed one-way latency, with delivery ordered by a fake
// or real clock.
package mock

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/chirpchirp/loralink/radio"
	"github.com/chirpchirp/loralink/runtime"
)

// LossModel decides, per transmitted frame, whether it should be dropped.
type LossModel interface {
	ShouldDrop() bool
}

// BernoulliLoss drops frames independently at random with probability
// lossRate, using a seeded RNG for reproducibility.
type BernoulliLoss struct {
	rng      *rand.Rand
	lossRate float64
}

// NewBernoulliLoss constructs a BernoulliLoss seeded deterministically.
func NewBernoulliLoss(lossRate float64, seed int64) *BernoulliLoss {
	return &BernoulliLoss{rng: rand.New(rand.NewSource(seed)), lossRate: lossRate}
}

func (l *BernoulliLoss) ShouldDrop() bool {
	return l.rng.Float64() < l.lossRate
}

// PatternLoss cycles through a fixed drop/keep pattern, for exactly
// reproducible loss sequences in tests.
type PatternLoss struct {
	pattern []bool
	counter int
}

// NewPatternLoss constructs a PatternLoss over the given repeating pattern.
func NewPatternLoss(pattern []bool) *PatternLoss {
	return &PatternLoss{pattern: pattern}
}

func (l *PatternLoss) ShouldDrop() bool {
	if len(l.pattern) == 0 {
		return false
	}
	drop := l.pattern[l.counter%len(l.pattern)]
	l.counter++
	return drop
}

type delivery struct {
	deliverAtMs int64
	frame       []byte
}

type deliveryHeap []delivery

func (h deliveryHeap) Len() int            { return len(h) }
func (h deliveryHeap) Less(i, j int) bool  { return h[i].deliverAtMs < h[j].deliverAtMs }
func (h deliveryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deliveryHeap) Push(x any)         { *h = append(*h, x.(delivery)) }
func (h *deliveryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Link is a bidirectional, lossy, latency-delaying in-process channel
// between two Transport endpoints, labeled A and B.
type Link struct {
	clock     runtime.Clock
	lossAtoB  LossModel
	lossBtoA  LossModel
	latencyMs int64

	mu     sync.Mutex
	queues map[string]*deliveryHeap

	A *Endpoint
	B *Endpoint
}

// Config configures a Link. A zero value is a lossless, zero-latency
// link with the wall clock.
type Config struct {
	Clock     runtime.Clock
	LossAtoB  LossModel
	LossBtoA  LossModel
	LatencyMs int64
}

// NewLink constructs a Link from cfg, defaulting to the wall clock and no
// loss when left unset.
func NewLink(cfg Config) *Link {
	if cfg.Clock == nil {
		cfg.Clock = runtime.NewWallClock()
	}
	if cfg.LossAtoB == nil {
		cfg.LossAtoB = NewPatternLoss(nil)
	}
	if cfg.LossBtoA == nil {
		cfg.LossBtoA = NewPatternLoss(nil)
	}
	qa, qb := &deliveryHeap{}, &deliveryHeap{}
	heap.Init(qa)
	heap.Init(qb)
	l := &Link{
		clock:     cfg.Clock,
		lossAtoB:  cfg.LossAtoB,
		lossBtoA:  cfg.LossBtoA,
		latencyMs: cfg.LatencyMs,
		queues:    map[string]*deliveryHeap{"a": qa, "b": qb},
	}
	l.A = &Endpoint{link: l, label: "a"}
	l.B = &Endpoint{link: l, label: "b"}
	return l
}

func (l *Link) send(sender string, frame []byte) error {
	loss := l.lossAtoB
	if sender == "b" {
		loss = l.lossBtoA
	}
	if loss.ShouldDrop() {
		return nil
	}
	peer := "b"
	if sender == "b" {
		peer = "a"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	heap.Push(l.queues[peer], delivery{
		deliverAtMs: l.clock.NowMs() + l.latencyMs,
		frame:       append([]byte{}, frame...),
	})
	return nil
}

func (l *Link) recv(ctx context.Context, receiver string, timeoutMs int64) ([]byte, error) {
	deadline := l.clock.NowMs() + maxInt64(0, timeoutMs)
	for {
		l.mu.Lock()
		q := l.queues[receiver]
		if q.Len() > 0 && (*q)[0].deliverAtMs <= l.clock.NowMs() {
			d := heap.Pop(q).(delivery)
			l.mu.Unlock()
			return d.frame, nil
		}
		l.mu.Unlock()

		if timeoutMs <= 0 {
			return nil, nil
		}
		now := l.clock.NowMs()
		if now >= deadline {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if fc, ok := l.clock.(interface{ Advance(int64) }); ok {
			fc.Advance(minInt64(1, deadline-now))
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Endpoint is one side of a Link, implementing radio.Transport.
type Endpoint struct {
	link  *Link
	label string
}

func (e *Endpoint) Send(frame []byte) error {
	return e.link.send(e.label, frame)
}

func (e *Endpoint) Recv(ctx context.Context, timeoutMs int64) ([]byte, error) {
	return e.link.recv(ctx, e.label, timeoutMs)
}

func (e *Endpoint) Close() error { return nil }

var _ radio.Transport = (*Endpoint)(nil)
