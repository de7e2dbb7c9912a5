package runtime

import "testing"

func TestFakeClockSleepAdvances(t *testing.T) {
	c := NewFakeClock(100)
	c.SleepMs(50)
	if c.NowMs() != 150 {
		t.Fatalf("expected 150, got %d", c.NowMs())
	}
}

func TestFakeClockSleepIgnoresNonPositive(t *testing.T) {
	c := NewFakeClock(100)
	c.SleepMs(0)
	c.SleepMs(-10)
	if c.NowMs() != 100 {
		t.Fatalf("expected clock unchanged, got %d", c.NowMs())
	}
}

func TestFakeClockAdvance(t *testing.T) {
	c := NewFakeClock(0)
	c.Advance(5)
	if c.NowMs() != 5 {
		t.Fatalf("expected 5, got %d", c.NowMs())
	}
}
