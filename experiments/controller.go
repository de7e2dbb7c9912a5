package experiments

import (
	"context"

	"github.com/chirpchirp/loralink/runtime"
)

// RunPair drives a TxNode/RxNode pair to completion (or until maxSteps is
// exhausted), stepping a shared clock between iterations. Used by the
// offline phase0/phase1 experiments, which run entirely against a
// FakeClock and a mock radio link.
func RunPair(ctx context.Context, tx *runtime.TxNode, rx *runtime.RxNode, clock runtime.Clock, stepMs int64, maxSteps int) error {
	for i := 0; i < maxSteps; i++ {
		if err := tx.ProcessOnce(ctx); err != nil {
			return err
		}
		if err := rx.ProcessOnce(ctx); err != nil {
			return err
		}
		if tx.IsDone() {
			return nil
		}
		clock.SleepMs(stepMs)
	}
	return nil
}
