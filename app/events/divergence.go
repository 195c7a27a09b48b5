package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/factory"
)

const DivergenceEventType = "api_subscription.divergence"

// DivergenceEvent reports a subscription whose gateway object changed while
// the matching local write failed.
type DivergenceEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	Operation      string    `json:"operation"`
	Detail         string    `json:"detail"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Notifier interface {
	NotifyDivergence(ctx context.Context, event DivergenceEvent) error
}

type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: factory.NewModuleLogger("divergence-notifier")}
}

func (n *LogNotifier) NotifyDivergence(_ context.Context, event DivergenceEvent) error {
	n.logger.WithFields(logrus.Fields{
		"subscription_id": event.SubscriptionID,
		"operation":       event.Operation,
		"detail":          event.Detail,
		"occurred_at":     event.OccurredAt,
	}).Error("subscription_divergence")
	return nil
}
