package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"patient-portal-server/internal/domain"
	"patient-portal-server/internal/repo"
)

const sweepBatchSize = 100

// ExpiryWorker cancels payments stuck in pending past a cutoff, e.g. when a
// user abandons checkout and the provider never calls back. It uses the same
// compare-and-set transition the webhook uses, so it can never overwrite a
// terminal status that lands concurrently.
type ExpiryWorker struct {
	payments repo.PaymentRepo
	after    time.Duration
	interval time.Duration
	log      *logrus.Logger
}

func NewExpiryWorker(payments repo.PaymentRepo, after, interval time.Duration, log *logrus.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		payments: payments,
		after:    after,
		interval: interval,
		log:      log,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("after", w.after.String()).Info("payment expiry worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.log.WithError(err).Warn("payment expiry sweep failed")
			}
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) error {
	stale, err := w.payments.FindStalePending(ctx, w.after, sweepBatchSize)
	if err != nil {
		return err
	}

	for _, p := range stale {
		transitioned, err := w.payments.CompleteTransition(ctx, p.ID, domain.PaymentCancelled, nil, time.Now())
		if err != nil {
			w.log.WithFields(logrus.Fields{"payment_ref": p.ID, "error": err}).
				Warn("failed to expire payment")
			continue
		}
		if transitioned {
			w.log.WithField("payment_ref", p.ID).Info("expired stale pending payment")
		}
	}
	return nil
}
