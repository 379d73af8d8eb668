package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/fundval-backend/internal/model"
)

// AccuracyAuditor scores one day's estimate snapshots against the published NAVs.
type AccuracyAuditor interface {
	AuditAccuracy(ctx context.Context, day time.Time) (model.AccuracyAuditResult, error)
}

// AccuracyAuditJob scores the estimate snapshots of the previous and the current
// day. NAVs are often published after midnight, so yesterday is audited again.
type AccuracyAuditJob struct {
	auditor AccuracyAuditor
	log     zerolog.Logger
}

// NewAccuracyAuditJob creates a new accuracy audit job
func NewAccuracyAuditJob(auditor AccuracyAuditor, log zerolog.Logger) *AccuracyAuditJob {
	return &AccuracyAuditJob{
		auditor: auditor,
		log:     log.With().Str("job", "audit_accuracy").Logger(),
	}
}

// Name returns the job name
func (j *AccuracyAuditJob) Name() string {
	return "audit_accuracy"
}

// Run audits yesterday and today (UTC). A failed day does not stop the other.
func (j *AccuracyAuditJob) Run(ctx context.Context) error {
	today := time.Now().UTC()
	var errs []error
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		result, err := j.auditor.AuditAccuracy(ctx, day)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		j.log.Info().
			Time("date", result.Date).
			Int("scored", result.Scored).
			Int("pending", result.Pending).
			Msg("scheduled accuracy audit finished")
	}
	return errors.Join(errs...)
}
