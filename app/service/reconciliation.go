package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/events"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/factory"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/metrics"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"
	"golang.org/x/sync/errgroup"
)

const reconciliationBatchSize = 200

type markerRepository interface {
	ListUnreported(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ReconciliationMarker, error)
	MarkReported(ctx context.Context, id string, at time.Time) error
}

type subscriptionFinder interface {
	FindByID(ctx context.Context, id string) (*entity.APISubscription, error)
}

// ReconciliationService raises markers whose operation never finished, such
// as a process that died between the gateway call and the local write.
type ReconciliationService struct {
	markerRepo       markerRepository
	subscriptionRepo subscriptionFinder
	notifier         divergenceNotifier
	cfg              config.JobsConfig
	logger           logrus.FieldLogger
	now              func() time.Time
}

func NewReconciliationService(
	markerRepo markerRepository,
	subscriptionRepo subscriptionFinder,
	notifier divergenceNotifier,
	cfg config.JobsConfig,
) *ReconciliationService {
	if cfg.ReconcileConcurrency <= 0 {
		cfg.ReconcileConcurrency = 1
	}
	return &ReconciliationService{
		markerRepo:       markerRepo,
		subscriptionRepo: subscriptionRepo,
		notifier:         notifier,
		cfg:              cfg,
		logger:           factory.NewModuleLogger("reconciliation-service"),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReconciliationService) RunReconciliationBatch(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.ReconcileStaleAfter)
	markers, err := s.markerRepo.ListUnreported(ctx, cutoff, reconciliationBatchSize)
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		return nil
	}

	var failed int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ReconcileConcurrency)
	for _, marker := range markers {
		g.Go(func() error {
			if err := s.report(gctx, marker); err != nil {
				atomic.AddInt32(&failed, 1)
				s.logger.WithError(err).WithFields(logrus.Fields{
					"marker_id":       marker.ID,
					"subscription_id": marker.SubscriptionID,
				}).Warn("Failed to report stale reconciliation marker")
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.WithFields(logrus.Fields{"markers": len(markers), "failed": failed}).Info("Reconciliation batch finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d reconciliation markers could not be reported", failed, len(markers))
	}
	return nil
}

func (s *ReconciliationService) report(ctx context.Context, marker *entity.ReconciliationMarker) error {
	localState := "missing"
	subscription, err := s.subscriptionRepo.FindByID(ctx, marker.SubscriptionID)
	if err != nil {
		return err
	}
	if subscription != nil {
		localState = fmt.Sprintf("status=%s deployment=%s", subscription.Status, subscription.DeploymentName)
	}

	now := s.now()
	event := events.DivergenceEvent{
		SubscriptionID: marker.SubscriptionID,
		Operation:      marker.Operation,
		Detail:         fmt.Sprintf("%s: unfinished since %s, local %s", marker.Detail, marker.CreatedAt.Format(time.RFC3339), localState),
		OccurredAt:     now,
	}
	if err := s.notifier.NotifyDivergence(ctx, event); err != nil {
		return err
	}
	metrics.ObserveDivergenceReported("reconciler")
	return s.markerRepo.MarkReported(ctx, marker.ID, now)
}
