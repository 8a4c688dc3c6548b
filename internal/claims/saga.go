package claims

import "context"

// step is one externally-effecting stage of a redemption, executed after the
// account has durably committed to CLAIMED. A failing step stops the saga,
// fires the compensation, and propagates its own error unchanged.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// runSteps executes steps in order. On the first failure it invokes
// compensate with the failing step's name and error, then returns that error.
// Compensation must not mask the original error.
func runSteps(ctx context.Context, steps []step, compensate func(ctx context.Context, name string, cause error)) error {
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			compensate(ctx, s.name, err)
			return err
		}
	}
	return nil
}
