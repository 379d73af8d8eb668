package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ndewijer/fundval-backend/internal/model"
)

// Recalculator rebuilds positions from the ledger.
type Recalculator interface {
	RecalculateAllPositions(ctx context.Context, accountID *string) (model.RecalculateSummary, error)
}

// RecalculateJob periodically rebuilds every position from its ledger,
// repairing any drift between a stored position and its fold.
type RecalculateJob struct {
	positions Recalculator
	log       zerolog.Logger
}

// NewRecalculateJob creates a new recalculation job
func NewRecalculateJob(positions Recalculator, log zerolog.Logger) *RecalculateJob {
	return &RecalculateJob{
		positions: positions,
		log:       log.With().Str("job", "recalculate_positions").Logger(),
	}
}

// Name returns the job name
func (j *RecalculateJob) Name() string {
	return "recalculate_positions"
}

// Run sweeps all positions. Failed pairs are logged by the sweep itself; the
// returned error only reports that the sweep was incomplete.
func (j *RecalculateJob) Run(ctx context.Context) error {
	summary, err := j.positions.RecalculateAllPositions(ctx, nil)

	j.log.Info().
		Int("pairs", summary.Pairs).
		Int("recalculated", summary.Recalculated).
		Int("failed", len(summary.Failed)).
		Msg("scheduled recalculation finished")
	return err
}
